package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"sync"
	"time"

	"github.com/coregx/sqlforge/internal/adapter"
	"github.com/coregx/sqlforge/internal/tracer"
)

// handle holds a prepared statement owned by one Query rather than the cache:
// a statement re-prepared during recovery, or any statement while the cache
// is disabled.
type handle struct {
	stmt adapter.Stmt
}

// Query is an executable statement: rendered SQL plus its bound values.
//
// A Query registers with the connection's resilience manager on first use.
// If the connection is lost and recovered, the statement is re-prepared and
// keeps its bound values, so executing it again needs no caller action.
// Close releases the registration; a Query dropped without Close is released
// when it is garbage collected.
type Query struct {
	db     *DB
	sql    string
	params []any
	ctx    context.Context

	mu     sync.Mutex
	binds  adapter.Binds
	h      *handle
	closed bool

	// Set by the manager under its registry lock.
	trackID uint64
	connID  string
	cleanup runtime.Cleanup
}

func newQuery(db *DB, sql string, params []any, offset int) *Query {
	return &Query{
		db:     db,
		sql:    sql,
		params: params,
		binds:  positionalBinds(params, offset),
		h:      &handle{},
	}
}

// WithContext sets the context used by Execute, Rows and Row.
func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

// SQL returns the statement text with canonical placeholders.
func (q *Query) SQL() string { return q.sql }

// Params returns the values bound to the positional placeholders.
func (q *Query) Params() []any { return q.params }

// Bind sets the value of a named placeholder such as ":user_id".
func (q *Query) Bind(name string, v any) *Query {
	validatePlaceholder(name)
	q.mu.Lock()
	q.binds[name] = normalizeValue(v)
	q.mu.Unlock()
	return q
}

// BindParams sets several named placeholders.
func (q *Query) BindParams(params Params) *Query {
	for k, v := range params {
		q.Bind(placeholderName(k), v)
	}
	return q
}

// Binds returns a copy of every bound value keyed by placeholder name.
func (q *Query) Binds() adapter.Binds {
	q.mu.Lock()
	defer q.mu.Unlock()
	return maps.Clone(q.binds)
}

// Execute runs the statement and returns its result.
func (q *Query) Execute() (sql.Result, error) {
	if q.db == nil {
		return nil, ErrNotAttached
	}
	ctx, span := q.db.tracer.StartSpan(q.context(), tracer.SpanQueryExecute)
	defer span.End()

	start := time.Now()
	var result sql.Result
	cached, retried, err := q.run(ctx, "exec", func(ctx context.Context, stmt adapter.Stmt, binds adapter.Binds) error {
		var err error
		result, err = stmt.Exec(ctx, binds)
		return err
	})
	err = q.db.classify("exec", q.sql, err)

	var rowsAffected int64
	if err == nil && result != nil {
		rowsAffected, _ = result.RowsAffected()
	}
	q.db.observe(ctx, span, q, execution{
		op:           "exec",
		elapsed:      time.Since(start),
		rowsAffected: rowsAffected,
		cached:       cached,
		retried:      retried,
		err:          err,
	})
	return result, err
}

// Rows runs the statement and returns its rows. The caller must close them.
func (q *Query) Rows() (*sql.Rows, error) {
	if q.db == nil {
		return nil, ErrNotAttached
	}
	ctx, span := q.db.tracer.StartSpan(q.context(), tracer.SpanQueryRows)
	defer span.End()

	start := time.Now()
	var rows *sql.Rows
	cached, retried, err := q.run(ctx, "query", func(ctx context.Context, stmt adapter.Stmt, binds adapter.Binds) error {
		var err error
		rows, err = stmt.Query(ctx, binds)
		return err
	})
	err = q.db.classify("query", q.sql, err)

	q.db.observe(ctx, span, q, execution{
		op:      "query",
		elapsed: time.Since(start),
		cached:  cached,
		retried: retried,
		err:     err,
	})
	return rows, err
}

// Row runs the statement and scans the first row into dest.
// It returns ErrNoRows when the result is empty.
func (q *Query) Row(dest ...any) error {
	rows, err := q.Rows()
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return q.db.classify("query", q.sql, err)
		}
		return ErrNoRows
	}
	return rows.Scan(dest...)
}

// Close releases the statement's registration and any handle it owns.
// Closing twice is a no-op.
func (q *Query) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	stmt := q.h.stmt
	q.h.stmt = nil
	q.mu.Unlock()

	if q.db != nil {
		q.db.manager.untrack(q)
	}
	if stmt != nil {
		return stmt.Close()
	}
	return nil
}

func (q *Query) context() context.Context {
	if q.ctx != nil {
		return q.ctx
	}
	return context.Background()
}

type runFunc func(ctx context.Context, stmt adapter.Stmt, binds adapter.Binds) error

// run executes fn against a prepared handle. When the attempt fails because
// the connection dropped, the connection is recovered and fn runs once more.
// Inside a transaction the retry is skipped: the server discarded the
// transaction, and ErrTxLost is returned until its scopes are closed.
func (q *Query) run(ctx context.Context, op string, fn runFunc) (cached, retried bool, err error) {
	db := q.db
	for attempt := 0; ; attempt++ {
		if err = db.manager.CheckAlive(ctx, db.conn); err != nil {
			return cached, retried, err
		}
		if db.txs.lost(db.conn.ID()) {
			return cached, retried, ErrTxLost
		}
		inTx := db.txs.depth(db.conn.ID()) > 0

		stop := db.watchdog.watch(op, q.sql)
		var stmt adapter.Stmt
		var binds adapter.Binds
		stmt, binds, cached, err = q.acquire(ctx)
		if err == nil {
			db.manager.track(db.conn.ID(), q)
			err = fn(ctx, stmt, binds)
		}
		stop()

		if err == nil || attempt > 0 || db.conn.IsOpen() {
			return cached, retried, err
		}

		db.logger.Warn("connection lost during statement",
			"sql", q.sql,
			"conn_id", db.conn.ID(),
			"error", err,
		)
		if rerr := db.manager.CheckAlive(ctx, db.conn); rerr != nil {
			return cached, retried, rerr
		}
		if inTx {
			return cached, retried, fmt.Errorf("%w: %w", ErrTxLost, err)
		}
		retried = true
	}
}

// acquire returns a prepared handle and a snapshot of the bound values.
func (q *Query) acquire(ctx context.Context) (adapter.Stmt, adapter.Binds, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, nil, false, ErrQueryClosed
	}
	stmt, cached, err := q.db.statement(ctx, q.sql, q.h)
	if err != nil {
		return nil, nil, false, err
	}
	return stmt, maps.Clone(q.binds), cached, nil
}

// replay re-prepares the statement on a recovered connection. The bound
// values stay with the Query and are applied on the next execution.
func (q *Query) replay(ctx context.Context, conn adapter.Conn) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, nil
	}
	if old := q.h.stmt; old != nil {
		_ = old.Close() // Belongs to the dropped session.
		q.h.stmt = nil
	}
	stmt, err := conn.Prepare(ctx, q.sql)
	if err != nil {
		return false, err
	}
	q.h.stmt = stmt
	return true, nil
}

// statement finds or prepares the handle for query. A handle owned by the
// Query is moved into the cache when the cache accepts it.
func (db *DB) statement(ctx context.Context, query string, h *handle) (adapter.Stmt, bool, error) {
	id := db.conn.ID()

	db.prepareMu.Lock()
	defer db.prepareMu.Unlock()

	if stmt, ok := db.stmtCache.Get(id, query); ok {
		if h.stmt != nil {
			_ = h.stmt.Close()
			h.stmt = nil
		}
		return stmt, true, nil
	}

	if h.stmt != nil {
		stmt := h.stmt
		if db.stmtCache.Put(id, query, stmt) {
			h.stmt = nil
		}
		return stmt, false, nil
	}

	stmt, err := db.conn.Prepare(ctx, query)
	if err != nil {
		return nil, false, err
	}
	if !db.stmtCache.Put(id, query, stmt) {
		h.stmt = stmt
	}
	return stmt, false, nil
}

// execution is the outcome of one Execute or Rows call.
type execution struct {
	op           string
	elapsed      time.Duration
	rowsAffected int64
	cached       bool
	retried      bool
	err          error
}

// observe logs, traces, measures and reports one execution.
func (db *DB) observe(ctx context.Context, span tracer.Span, q *Query, e execution) {
	binds := q.Binds()
	masked := db.sanitizer.FormatBinds(db.sanitizer.MaskBinds(q.sql, binds))

	operation := tracer.DetectOperation(q.sql)
	result, kind := "ok", ""
	if e.err != nil {
		result = errorKind(e.err)
		kind = result
	}

	if e.err != nil {
		db.logger.Error("query execution failed",
			"sql", q.sql,
			"params", masked,
			"duration_ms", e.elapsed.Milliseconds(),
			"database", db.driverName,
			"error_kind", kind,
			"error", e.err,
		)
	} else {
		db.logger.Info("query executed",
			"sql", q.sql,
			"params", masked,
			"duration_ms", e.elapsed.Milliseconds(),
			"rows_affected", e.rowsAffected,
			"cached", e.cached,
			"retried", e.retried,
			"database", db.driverName,
		)
	}

	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:          q.sql,
		Params:       len(binds),
		Database:     db.dialect.Name(),
		ConnID:       db.conn.ID(),
		Duration:     e.elapsed,
		RowsAffected: e.rowsAffected,
		Cached:       e.cached,
		Retried:      e.retried,
		Error:        e.err,
		ErrorKind:    kind,
	})

	db.metrics.QueriesTotal.With(operation, result).Inc()
	db.metrics.QueryDurationSeconds.With(operation).Observe(e.elapsed.Seconds())

	db.invokeHook(ctx, QueryEvent{
		SQL:          q.sql,
		Args:         q.params,
		Duration:     e.elapsed,
		RowsAffected: e.rowsAffected,
		Error:        e.err,
		Operation:    operation,
		Cached:       e.cached,
		Retried:      e.retried,
	})
}

// errorKind returns the metric/trace label for err.
func errorKind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.String()
	}
	return "error"
}
