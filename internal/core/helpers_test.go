package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/coregx/sqlforge/internal/adapter"
)

// fakeConn is an in-memory adapter.Conn that records every call.
type fakeConn struct {
	id     string
	driver string

	mu         sync.Mutex
	open       bool
	session    int
	reopens    int
	reopenErr  error
	reopenWait time.Duration
	pingErr    error
	execDelay  time.Duration
	commitErr  error
	execErr    map[string]error
	dropOnExec map[string]bool
	calls      []string
	prepares   map[string]int
	lastBinds  map[string]adapter.Binds
	subs       map[string]struct{}
	notes      chan adapter.Notification
}

func newFakeConn(driverName string) *fakeConn {
	return &fakeConn{
		id:         "fake-1",
		driver:     driverName,
		open:       true,
		execErr:    make(map[string]error),
		dropOnExec: make(map[string]bool),
		prepares:   make(map[string]int),
		lastBinds:  make(map[string]adapter.Binds),
		subs:       make(map[string]struct{}),
		notes:      make(chan adapter.Notification, 8),
	}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) DriverName() string { return c.driver }

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return driver.ErrBadConn
	}
	return c.pingErr
}

func (c *fakeConn) Reopen(context.Context) error {
	if c.reopenWait > 0 {
		time.Sleep(c.reopenWait)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reopens++
	if c.reopenErr != nil {
		return c.reopenErr
	}
	c.open = true
	c.session++
	c.subs = make(map[string]struct{})
	return nil
}

// drop simulates the server closing the session.
func (c *fakeConn) drop() {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
}

func (c *fakeConn) record(call string) {
	c.calls = append(c.calls, call)
}

func (c *fakeConn) Prepare(_ context.Context, query string) (adapter.Stmt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, driver.ErrBadConn
	}
	c.prepares[query]++
	c.record("PREPARE " + query)
	return &fakeStmt{conn: c, sql: query, session: c.session}, nil
}

func (c *fakeConn) Exec(_ context.Context, query string) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, driver.ErrBadConn
	}
	if c.dropOnExec[query] {
		delete(c.dropOnExec, query)
		c.open = false
		return nil, driver.ErrBadConn
	}
	if err := c.execErr[query]; err != nil {
		return nil, err
	}
	c.record("EXEC " + query)
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) control(stmt string, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return driver.ErrBadConn
	}
	if err != nil {
		return err
	}
	c.record(stmt)
	return nil
}

func (c *fakeConn) Begin(context.Context) error    { return c.control("BEGIN", nil) }
func (c *fakeConn) Commit(context.Context) error   { return c.control("COMMIT", c.commitErr) }
func (c *fakeConn) Rollback(context.Context) error { return c.control("ROLLBACK", nil) }

func (c *fakeConn) Subscribe(channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[channel] = struct{}{}
	return nil
}

func (c *fakeConn) Unsubscribe(channel string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, channel)
	return nil
}

func (c *fakeConn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.subs))
}

func (c *fakeConn) Notifications() <-chan adapter.Notification { return c.notes }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// Calls returns the recorded calls, optionally only those with a prefix.
func (c *fakeConn) Calls(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, call := range c.calls {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			out = append(out, call)
		}
	}
	return out
}

func (c *fakeConn) Prepares(query string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepares[query]
}

func (c *fakeConn) LastBinds(query string) adapter.Binds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastBinds[query]
}

func (c *fakeConn) Reopens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reopens
}

type fakeStmt struct {
	conn    *fakeConn
	sql     string
	session int
	closed  bool
}

func (s *fakeStmt) Exec(_ context.Context, binds adapter.Binds) (sql.Result, error) {
	c := s.conn
	if c.execDelay > 0 {
		time.Sleep(c.execDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, driver.ErrBadConn
	}
	if c.dropOnExec[s.sql] {
		delete(c.dropOnExec, s.sql)
		c.open = false
		return nil, driver.ErrBadConn
	}
	if s.closed || s.session != c.session {
		return nil, fmt.Errorf("prepared statement %q does not exist", s.sql)
	}
	if err := c.execErr[s.sql]; err != nil {
		return nil, err
	}
	c.lastBinds[s.sql] = maps.Clone(binds)
	c.record("EXEC " + s.sql)
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query(context.Context, adapter.Binds) (*sql.Rows, error) {
	return nil, errors.New("fakeStmt: Query not supported")
}

func (s *fakeStmt) Close() error {
	s.conn.mu.Lock()
	s.closed = true
	s.conn.mu.Unlock()
	return nil
}

// newFakeDB wraps a fake postgres connection with a fast reconnect policy.
func newFakeDB(t *testing.T, opts ...Option) (*DB, *fakeConn) {
	t.Helper()
	conn := newFakeConn("postgres")
	opts = append([]Option{WithReconnectPolicy(ReconnectPolicy{MaxAttempts: 3})}, opts...)
	db := WrapConn(conn, opts...)
	t.Cleanup(func() { _ = db.Close() })
	return db, conn
}

// recordLogger keeps every message for assertions.
type recordLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordLogger) add(level, msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, level+" "+msg)
	l.mu.Unlock()
}

func (l *recordLogger) Debug(msg string, _ ...any) { l.add("DEBUG", msg) }
func (l *recordLogger) Info(msg string, _ ...any)  { l.add("INFO", msg) }
func (l *recordLogger) Warn(msg string, _ ...any)  { l.add("WARN", msg) }
func (l *recordLogger) Error(msg string, _ ...any) { l.add("ERROR", msg) }

func (l *recordLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.msgs, entry)
}
