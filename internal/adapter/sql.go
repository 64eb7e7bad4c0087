package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/coregx/sqlforge/internal/dialects"
)

// SQLConn implements Conn over database/sql.
//
// All statements and transaction control run on one pinned *sql.Conn so that
// BEGIN/COMMIT/ROLLBACK and prepared handles share a physical session.
// Reopen releases the pinned session and acquires a fresh one from the pool.
type SQLConn struct {
	id         string
	driverName string
	dsn        string
	dialect    dialects.Dialect
	ownsDB     bool

	mu     sync.Mutex
	db     *sql.DB
	conn   *sql.Conn
	broken atomic.Bool
	closed bool

	notifier *notifier
}

// Option configures an SQLConn.
type Option func(*SQLConn)

// WithID sets the logical connection identity. Defaults to a random UUID.
func WithID(id string) Option {
	return func(c *SQLConn) {
		c.id = id
	}
}

// WithDSN records the data source name used for the notification listener
// when the connection wraps an existing *sql.DB.
func WithDSN(dsn string) Option {
	return func(c *SQLConn) {
		c.dsn = dsn
	}
}

// Open opens a database and pins one session for the logical connection.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*SQLConn, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	c, err := Wrap(ctx, db, driverName, append([]Option{WithDSN(dsn)}, opts...)...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

// Wrap pins one session of an existing *sql.DB. The caller keeps ownership of db.
func Wrap(ctx context.Context, db *sql.DB, driverName string, opts ...Option) (*SQLConn, error) {
	c := &SQLConn{
		id:         uuid.NewString(),
		driverName: driverName,
		dialect:    dialects.GetDialect(driverName),
		db:         db,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.notifier = newNotifier(c.dialect, c.dsn)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	c.conn = conn
	return c, nil
}

// ID returns the logical connection identity.
func (c *SQLConn) ID() string { return c.id }

// DriverName returns the database/sql driver name.
func (c *SQLConn) DriverName() string { return c.driverName }

// DB returns the underlying pool.
func (c *SQLConn) DB() *sql.DB { return c.db }

// IsOpen reports whether the pinned session is usable. A session is marked
// unusable as soon as any call on it fails with a connection error.
func (c *SQLConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil && !c.broken.Load()
}

// Ping checks the pinned session with a round trip.
func (c *SQLConn) Ping(ctx context.Context) error {
	conn, err := c.session()
	if err != nil {
		return err
	}
	return c.observe(conn.PingContext(ctx))
}

// Reopen drops the pinned session and acquires a new one.
func (c *SQLConn) Reopen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return err
	}
	c.conn = conn
	c.broken.Store(false)
	return nil
}

// Prepare rewrites the canonical placeholders and prepares the statement on
// the pinned session.
func (c *SQLConn) Prepare(ctx context.Context, query string) (Stmt, error) {
	conn, err := c.session()
	if err != nil {
		return nil, err
	}
	text, names := Rewrite(query, c.dialect)
	stmt, err := conn.PrepareContext(ctx, text)
	if err != nil {
		return nil, c.observe(err)
	}
	return &sqlStmt{conn: c, stmt: stmt, names: names}, nil
}

// Exec runs query on the pinned session without preparing it. The text is
// sent as is.
func (c *SQLConn) Exec(ctx context.Context, query string) (sql.Result, error) {
	conn, err := c.session()
	if err != nil {
		return nil, err
	}
	res, err := conn.ExecContext(ctx, query)
	return res, c.observe(err)
}

// Begin issues a physical BEGIN.
func (c *SQLConn) Begin(ctx context.Context) error { return c.control(ctx, "BEGIN") }

// Commit issues a physical COMMIT.
func (c *SQLConn) Commit(ctx context.Context) error { return c.control(ctx, "COMMIT") }

// Rollback issues a physical ROLLBACK.
func (c *SQLConn) Rollback(ctx context.Context) error { return c.control(ctx, "ROLLBACK") }

func (c *SQLConn) control(ctx context.Context, stmt string) error {
	conn, err := c.session()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, stmt)
	return c.observe(err)
}

// Subscribe starts listening on a notification channel.
func (c *SQLConn) Subscribe(channel string) error { return c.notifier.subscribe(channel) }

// Unsubscribe stops listening on a notification channel.
func (c *SQLConn) Unsubscribe(channel string) error { return c.notifier.unsubscribe(channel) }

// Subscriptions returns the active channels, sorted.
func (c *SQLConn) Subscriptions() []string {
	subs := c.notifier.channels()
	sort.Strings(subs)
	return subs
}

// Notifications returns the channel notifications are delivered on.
func (c *SQLConn) Notifications() <-chan Notification { return c.notifier.out }

// Close releases the pinned session, the listener, and the pool if it was
// opened by this connection.
func (c *SQLConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if c.conn != nil {
		firstErr = c.conn.Close()
		c.conn = nil
	}
	if err := c.notifier.close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c.ownsDB {
		if err := c.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *SQLConn) session() (*sql.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil, ErrClosed
	}
	return c.conn, nil
}

// observe marks the session broken when err is a connection error.
func (c *SQLConn) observe(err error) error {
	if err != nil && c.dialect.IsConnectionError(err) {
		c.broken.Store(true)
	}
	return err
}

// sqlStmt is a statement prepared on the pinned session.
type sqlStmt struct {
	conn  *SQLConn
	stmt  *sql.Stmt
	names []string
}

func (s *sqlStmt) Exec(ctx context.Context, binds Binds) (sql.Result, error) {
	args, err := bindArgs(binds, s.names)
	if err != nil {
		return nil, err
	}
	res, err := s.stmt.ExecContext(ctx, args...)
	return res, s.conn.observe(err)
}

func (s *sqlStmt) Query(ctx context.Context, binds Binds) (*sql.Rows, error) {
	args, err := bindArgs(binds, s.names)
	if err != nil {
		return nil, err
	}
	rows, err := s.stmt.QueryContext(ctx, args...)
	return rows, s.conn.observe(err)
}

func (s *sqlStmt) Close() error {
	return s.stmt.Close()
}
