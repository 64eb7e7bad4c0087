// Package core provides statement assembly, prepared-statement reuse,
// nested transactions and connection recovery for sqlforge.
package core

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coregx/sqlforge/internal/adapter"
	"github.com/coregx/sqlforge/internal/cache"
	"github.com/coregx/sqlforge/internal/dialects"
	"github.com/coregx/sqlforge/internal/logger"
	"github.com/coregx/sqlforge/internal/metrics"
	"github.com/coregx/sqlforge/internal/tracer"
)

// DB is one logical database session with its statement cache, transaction
// state and resilience manager.
type DB struct {
	conn       adapter.Conn
	driverName string
	dialect    dialects.Dialect

	stmtCache *cache.StmtCache
	manager   *Manager
	txs       *txManager
	prepareMu sync.Mutex

	logger    logger.Logger
	sanitizer *logger.Sanitizer
	tracer    tracer.Tracer
	metrics   *metrics.Metrics
	queryHook QueryHook
	watchdog  *watchdog

	healthChecker *healthChecker

	dispatchOnce sync.Once
	dispatchWG   sync.WaitGroup
	done         chan struct{}
	closeOnce    sync.Once

	// Collected from options before the connection is attached.
	connID          string
	cacheCapacity   int
	sensitiveFields []string
	watchdogTimeout time.Duration
	healthInterval  time.Duration
	metricsReg      prometheus.Registerer
	policy          ReconnectPolicy
	exit            func(int)
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// WithSensitiveFields replaces the column names whose values are masked in logs.
func WithSensitiveFields(fields []string) Option {
	return func(db *DB) {
		db.sensitiveFields = fields
	}
}

// WithTracer sets the tracer. The default records nothing.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		db.tracer = t
	}
}

// WithMetrics registers Prometheus metrics with reg, labelled with the
// connection ID. Close unregisters them.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(db *DB) {
		db.metricsReg = reg
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity per connection.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.cacheCapacity = capacity
	}
}

// WithWatchdog logs a warning for any single prepare or execute call that
// blocks longer than timeout.
func WithWatchdog(timeout time.Duration) Option {
	return func(db *DB) {
		db.watchdogTimeout = timeout
	}
}

// WithHealthCheck pings the connection every interval and recovers it when
// the ping finds it dead.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		db.healthInterval = interval
	}
}

// WithReconnectPolicy sets how connection recovery retries and what happens
// when it gives up.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(db *DB) {
		db.policy = p
	}
}

// WithQueryHook sets a callback invoked after every statement execution.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithExitFunc replaces os.Exit for the ExhaustFatal policy.
func WithExitFunc(exit func(int)) Option {
	return func(db *DB) {
		db.exit = exit
	}
}

// WithConnectionID sets the logical connection identity used by the cache,
// the resilience manager and the logs. Defaults to a random UUID.
func WithConnectionID(id string) Option {
	return func(db *DB) {
		db.connID = id
	}
}

// Open opens a database and pins one session for the DB.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	return OpenContext(context.Background(), driverName, dsn, opts...)
}

// OpenContext is Open with a context for acquiring the session.
func OpenContext(ctx context.Context, driverName, dsn string, opts ...Option) (*DB, error) {
	db := newDB(driverName, opts)
	conn, err := adapter.Open(ctx, driverName, dsn, db.connOptions()...)
	if err != nil {
		return nil, err
	}
	db.attach(conn)
	return db, nil
}

// WrapDB pins one session of an existing *sql.DB. The caller keeps ownership
// of sqlDB; Close releases only the pinned session.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	db := newDB(driverName, opts)
	conn, err := adapter.Wrap(context.Background(), sqlDB, driverName, db.connOptions()...)
	if err != nil {
		return nil, err
	}
	db.attach(conn)
	return db, nil
}

// WrapConn builds a DB over any adapter.Conn implementation.
func WrapConn(conn adapter.Conn, opts ...Option) *DB {
	db := newDB(conn.DriverName(), opts)
	db.attach(conn)
	return db
}

func newDB(driverName string, opts []Option) *DB {
	db := &DB{
		driverName: driverName,
		dialect:    dialects.GetDialect(driverName),
		logger:     &logger.NoopLogger{},
		tracer:     &tracer.NoopTracer{},
		metrics:    metrics.Noop(),
		policy:     DefaultReconnectPolicy(),
		exit:       os.Exit,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) connOptions() []adapter.Option {
	if db.connID == "" {
		return nil
	}
	return []adapter.Option{adapter.WithID(db.connID)}
}

// attach wires the components around conn.
func (db *DB) attach(conn adapter.Conn) {
	db.conn = conn
	db.connID = conn.ID()

	if db.cacheCapacity > 0 {
		db.stmtCache = cache.NewStmtCacheWithCapacity(db.cacheCapacity)
	} else {
		db.stmtCache = cache.NewStmtCache()
	}
	db.sanitizer = logger.NewSanitizer(db.sensitiveFields)
	db.watchdog = newWatchdog(db.watchdogTimeout, logger.With(db.logger, "component", "watchdog"))

	db.metrics = db.newMetrics()

	db.txs = newTxManager()
	db.manager = newManager(db.stmtCache, db.txs, db.policy)
	db.manager.logger = logger.With(db.logger, "component", "manager")
	db.manager.tracer = db.tracer
	db.manager.metrics = db.metrics
	db.manager.exit = db.exit

	if db.healthInterval > 0 {
		db.healthChecker = newHealthChecker(conn, db.manager, logger.With(db.logger, "component", "health"), db.healthInterval)
		db.healthChecker.start()
	}

	db.logger.Debug("database attached",
		"conn_id", db.connID,
		"driver", db.driverName,
		"stmt_cache_capacity", db.stmtCache.Stats().Capacity,
	)
}

// newMetrics registers the connection's metrics. A registration failure is
// logged and leaves metrics off.
func (db *DB) newMetrics() *metrics.Metrics {
	if db.metricsReg == nil {
		return metrics.Noop()
	}
	m, err := metrics.New(db.metricsReg, db.connID)
	if err == nil {
		err = m.RegisterCacheStats(func() metrics.CacheStats {
			s := db.stmtCache.Stats()
			return metrics.CacheStats{Size: s.Size, Hits: s.Hits, Misses: s.Misses, Evictions: s.Evictions}
		})
		if err != nil {
			m.Unregister()
		}
	}
	if err != nil {
		db.logger.Warn("metrics registration failed",
			"conn_id", db.connID,
			"error", err,
		)
		return metrics.Noop()
	}
	return m
}

// Close stops background work, closes cached statements and the connection.
func (db *DB) Close() error {
	var err error
	db.closeOnce.Do(func() {
		if db.healthChecker != nil {
			db.healthChecker.shutdown()
		}
		close(db.done)
		db.dispatchWG.Wait()
		db.stmtCache.Clear()
		db.metrics.Unregister()
		err = db.conn.Close()
	})
	return err
}

// Builder returns a query builder for this database.
func (db *DB) Builder() *QueryBuilder {
	return &QueryBuilder{db: db, dialect: db.dialect}
}

// Conn returns the underlying connection.
func (db *DB) Conn() adapter.Conn { return db.conn }

// Manager returns the resilience manager of the connection.
func (db *DB) Manager() *Manager { return db.manager }

// DriverName returns the database/sql driver name.
func (db *DB) DriverName() string { return db.driverName }

// SetStmtCacheEnabled turns prepared statement caching on or off. Turning it
// off closes every cached statement.
func (db *DB) SetStmtCacheEnabled(enabled bool) {
	db.stmtCache.SetEnabled(enabled)
}

// IsHealthy reports the result of the last health check. It is true when
// health checking is off.
func (db *DB) IsHealthy() bool {
	if db.healthChecker == nil {
		return true
	}
	return db.healthChecker.isHealthy()
}

// Stats is a snapshot of the DB's runtime state.
type Stats struct {
	ConnID           string
	State            ConnState
	Cache            cache.Stats
	Statements       int
	Monitors         int
	OpenTransactions int
	Healthy          bool
	LastHealthCheck  time.Time
}

// Stats returns a snapshot of the DB's runtime state.
func (db *DB) Stats() Stats {
	s := Stats{
		ConnID:           db.connID,
		State:            db.manager.State(db.connID),
		Cache:            db.stmtCache.Stats(),
		Statements:       db.manager.StatementCount(),
		Monitors:         db.manager.MonitorCount(),
		OpenTransactions: db.txs.count(),
		Healthy:          db.IsHealthy(),
	}
	if db.healthChecker != nil {
		s.LastHealthCheck = db.healthChecker.lastCheck()
	}
	return s
}

// Exec runs hand-written SQL once with named parameters.
func (db *DB) Exec(ctx context.Context, query string, params Params) (sql.Result, error) {
	q := db.Builder().NewQuery(query).WithContext(ctx).BindParams(params)
	defer func() { _ = q.Close() }()
	return q.Execute()
}
