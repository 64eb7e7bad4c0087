package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coregx/sqlforge/internal/tracer"
)

// txManager keeps the nesting depth of transaction scopes per connection.
// The generation changes whenever a recovery discards an open transaction,
// which invalidates every scope opened before it. Those scopes stay counted
// as orphans until each is committed, rolled back or closed, and while any
// remain the connection refuses statements with ErrTxLost.
type txManager struct {
	mu      sync.Mutex
	depths  map[string]int
	gens    map[string]uint64
	orphans map[string]int
}

func newTxManager() *txManager {
	return &txManager{
		depths:  make(map[string]int),
		gens:    make(map[string]uint64),
		orphans: make(map[string]int),
	}
}

func (m *txManager) depth(connID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depths[connID]
}

// enter increments the depth and returns the generation the scope belongs to.
func (m *txManager) enter(connID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths[connID]++
	return m.gens[connID]
}

// leave decrements the depth if gen is current and returns the new depth.
// A scope of a lost generation is released instead.
func (m *txManager) leave(connID string, gen uint64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[connID] != gen {
		m.releaseLocked(connID)
		return 0, false
	}
	if m.depths[connID] > 0 {
		m.depths[connID]--
	}
	return m.depths[connID], true
}

// current reports the depth if gen is current.
func (m *txManager) current(connID string, gen uint64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[connID] != gen {
		return 0, false
	}
	return m.depths[connID], true
}

// release forgets a scope of a lost generation. It is a no-op for a scope of
// the current generation.
func (m *txManager) release(connID string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[connID] != gen {
		m.releaseLocked(connID)
	}
}

func (m *txManager) releaseLocked(connID string) {
	if m.orphans[connID] > 0 {
		m.orphans[connID]--
	}
}

// lost reports whether scopes of a discarded transaction are still open.
func (m *txManager) lost(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orphans[connID] > 0
}

// lose discards the open transaction of connID and returns its depth.
func (m *txManager) lose(connID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.depths[connID]
	if d > 0 {
		m.orphans[connID] += d
		m.depths[connID] = 0
		m.gens[connID]++
	}
	return d
}

// count returns the number of connections with an open transaction.
func (m *txManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.depths {
		if d > 0 {
			n++
		}
	}
	return n
}

// Tx is one transaction scope. Scopes nest: only the outermost Begin issues
// BEGIN, only the outermost Commit issues COMMIT, and ROLLBACK is issued when
// the last open scope rolls back.
//
// Defer Close right after Begin. Close rolls back a scope that was neither
// committed nor rolled back; failures are logged, not returned.
//
// When the connection is recovered while a scope is open, the transaction is
// lost: every statement, Begin and Commit fails with ErrTxLost until all of
// its scopes are closed. Rollback and Close of a lost scope return quietly.
//
// Scopes of one connection must be used from one goroutine.
type Tx struct {
	db       *DB
	connID   string
	gen      uint64
	disarmed bool
	ctx      context.Context
}

// Begin opens a transaction scope. The physical BEGIN is issued only for the
// outermost scope and is retried once after recovering a lost connection.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	id := db.conn.ID()
	if err := db.manager.CheckAlive(ctx, db.conn); err != nil {
		return nil, db.classify("begin", "", err)
	}
	if db.txs.lost(id) {
		return nil, db.classify("begin", "", ErrTxLost)
	}

	if db.txs.depth(id) == 0 {
		err := db.txControl(ctx, tracer.SpanTxBegin, "begin", 1, func(ctx context.Context) error {
			return db.conn.Begin(ctx)
		}, true)
		if err != nil {
			return nil, err
		}
		db.metrics.ActiveTransactions.Inc()
	}

	gen := db.txs.enter(id)
	return &Tx{db: db, connID: id, gen: gen, ctx: ctx}, nil
}

// Transactional runs fn inside a transaction scope and commits when fn
// returns nil. The scope is rolled back when fn returns an error or panics.
func (db *DB) Transactional(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return err
	}
	return tx.Commit()
}

// Depth returns the current nesting depth of the scope's connection.
func (tx *Tx) Depth() int {
	d, _ := tx.db.txs.current(tx.connID, tx.gen)
	return d
}

// Commit closes the scope. COMMIT is issued when it is the outermost scope.
// A failed COMMIT leaves the scope open so that Close rolls it back.
func (tx *Tx) Commit() error {
	if tx.disarmed {
		return ErrTxDone
	}
	db := tx.db
	if err := db.manager.CheckAlive(tx.ctx, db.conn); err != nil {
		return db.classify("commit", "", err)
	}

	depth, ok := db.txs.current(tx.connID, tx.gen)
	if !ok {
		tx.abandon()
		return db.classify("commit", "", ErrTxLost)
	}

	if depth == 1 {
		err := db.txControl(tx.ctx, tracer.SpanTxCommit, "commit", depth, func(ctx context.Context) error {
			return db.conn.Commit(ctx)
		}, false)
		if err != nil {
			if _, ok := db.txs.current(tx.connID, tx.gen); !ok {
				tx.abandon()
			}
			return err
		}
		db.metrics.TransactionsTotal.With("commit").Inc()
		db.metrics.ActiveTransactions.Dec()
	}

	db.txs.leave(tx.connID, tx.gen)
	tx.disarmed = true
	return nil
}

// Rollback closes the scope. ROLLBACK is issued when no scope remains open.
// Rolling back a scope whose transaction was lost on reconnect returns nil.
func (tx *Tx) Rollback() error {
	if tx.disarmed {
		return ErrTxDone
	}
	return tx.rollback("rollback")
}

func (tx *Tx) rollback(result string) error {
	db := tx.db
	if err := db.manager.CheckAlive(tx.ctx, db.conn); err != nil {
		db.txs.leave(tx.connID, tx.gen)
		tx.disarmed = true
		return db.classify("rollback", "", err)
	}

	depth, ok := db.txs.leave(tx.connID, tx.gen)
	tx.disarmed = true
	if !ok || depth > 0 {
		return nil
	}

	db.metrics.ActiveTransactions.Dec()
	err := db.txControl(tx.ctx, tracer.SpanTxRollback, "rollback", depth, func(ctx context.Context) error {
		return db.conn.Rollback(ctx)
	}, false)
	if err != nil {
		return err
	}
	db.metrics.TransactionsTotal.With(result).Inc()
	return nil
}

// Close rolls back a scope that is still open. It is a no-op after Commit
// or Rollback. A nested scope closed without commit only leaves its nesting
// level; the outermost scope decides.
func (tx *Tx) Close() {
	if tx.disarmed {
		return
	}
	db := tx.db
	depth, ok := db.txs.current(tx.connID, tx.gen)
	if !ok {
		tx.abandon()
		return
	}
	if depth > 1 {
		db.txs.leave(tx.connID, tx.gen)
		tx.disarmed = true
		return
	}
	if err := tx.rollback("auto_rollback"); err != nil {
		db.logger.Warn("automatic rollback failed",
			"conn_id", tx.connID,
			"error", err,
		)
	}
}

// abandon disarms a scope whose transaction was lost.
func (tx *Tx) abandon() {
	tx.disarmed = true
	tx.db.txs.release(tx.connID, tx.gen)
}

// txControl issues a physical BEGIN, COMMIT or ROLLBACK. With retry set, a
// call that failed because the connection dropped is repeated once after
// recovery.
func (db *DB) txControl(ctx context.Context, spanName, op string, depth int, fn func(context.Context) error, retry bool) error {
	ctx, span := db.tracer.StartSpan(ctx, spanName)
	defer span.End()

	err := fn(ctx)
	if err != nil && !db.conn.IsOpen() {
		if rerr := db.manager.CheckAlive(ctx, db.conn); rerr != nil {
			err = rerr
		} else if retry {
			err = fn(ctx)
		} else if op == "rollback" {
			// The server discarded the transaction with the session.
			err = nil
		} else if !errors.Is(err, ErrTxLost) {
			err = fmt.Errorf("%w: %w", ErrTxLost, err)
		}
	}
	err = db.classify(op, "", err)

	tracer.AddTxAttributes(span, db.conn.ID(), depth, err)
	if err != nil {
		db.logger.Error("transaction "+op+" failed",
			"conn_id", db.conn.ID(),
			"error", err,
		)
	} else {
		db.logger.Debug("transaction "+op,
			"conn_id", db.conn.ID(),
			"depth", depth,
		)
	}
	return err
}
