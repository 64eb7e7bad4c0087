package core

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/coregx/sqlforge/internal/adapter"
	"github.com/coregx/sqlforge/internal/cache"
	"github.com/coregx/sqlforge/internal/logger"
	"github.com/coregx/sqlforge/internal/metrics"
	"github.com/coregx/sqlforge/internal/tracer"
	"github.com/coregx/sqlforge/internal/util"
)

// ConnState is the resilience state of a connection.
type ConnState int32

// Connection states.
const (
	StateAlive ConnState = iota
	StateRecovering
	// StateBroken follows an exhausted recovery. The next CheckAlive starts
	// a new one.
	StateBroken
)

// String returns the lower-case state name.
func (s ConnState) String() string {
	switch s {
	case StateRecovering:
		return "recovering"
	case StateBroken:
		return "broken"
	default:
		return "alive"
	}
}

// ExhaustPolicy decides what happens when every reconnect attempt failed.
type ExhaustPolicy int

// Exhaustion policies.
const (
	// ExhaustReturnError returns ErrReconnectExhausted to the caller.
	ExhaustReturnError ExhaustPolicy = iota
	// ExhaustFatal logs and terminates the process through the exit function.
	ExhaustFatal
)

// ReconnectPolicy bounds connection recovery.
type ReconnectPolicy struct {
	MaxAttempts int
	RetryDelay  time.Duration
	OnExhaust   ExhaustPolicy
}

// DefaultReconnectPolicy returns 10 attempts, 500ms apart, returning an error
// when exhausted.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: 10,
		RetryDelay:  500 * time.Millisecond,
		OnExhaust:   ExhaustReturnError,
	}
}

// StatementInfo describes one live statement.
type StatementInfo struct {
	ConnID string
	SQL    string
	Binds  adapter.Binds
}

// Manager keeps connections usable across transient loss.
//
// Every statement that has executed is tracked until closed. When a
// connection is found dead, the manager reopens it, clears its cached
// handles, re-prepares every tracked statement of that connection and
// re-issues the subscriptions of every registered Monitor. Concurrent
// recoveries of one connection are coalesced.
//
// Lock order: stmtMu, then monMu, then a Query's or Monitor's own mutex.
type Manager struct {
	cache   *cache.StmtCache
	txs     *txManager
	policy  ReconnectPolicy
	logger  logger.Logger
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	exit    func(int)

	states *xsync.MapOf[string, ConnState]
	group  singleflight.Group

	stmtMu sync.Mutex
	stmts  map[string]map[uint64]weak.Pointer[Query]
	nextID atomic.Uint64

	monMu    sync.Mutex
	monitors map[*Monitor]struct{}
}

func newManager(stmtCache *cache.StmtCache, txs *txManager, policy ReconnectPolicy) *Manager {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultReconnectPolicy().MaxAttempts
	}
	return &Manager{
		cache:    stmtCache,
		txs:      txs,
		policy:   policy,
		logger:   &logger.NoopLogger{},
		tracer:   &tracer.NoopTracer{},
		metrics:  metrics.Noop(),
		exit:     os.Exit,
		states:   xsync.NewMapOf[string, ConnState](),
		stmts:    make(map[string]map[uint64]weak.Pointer[Query]),
		monitors: make(map[*Monitor]struct{}),
	}
}

// State returns the state of the connection with the given identity.
func (m *Manager) State(connID string) ConnState {
	s, _ := m.states.Load(connID)
	return s
}

// CheckAlive returns nil when conn is usable, recovering it first if needed.
func (m *Manager) CheckAlive(ctx context.Context, conn adapter.Conn) error {
	if conn.IsOpen() {
		return nil
	}
	return m.Recover(ctx, conn)
}

// Recover reopens conn and restores its statements and subscriptions.
// Callers recovering the same connection concurrently share one recovery.
func (m *Manager) Recover(ctx context.Context, conn adapter.Conn) error {
	_, err, _ := m.group.Do(conn.ID(), func() (any, error) {
		return nil, m.recover(ctx, conn)
	})
	return err
}

func (m *Manager) recover(ctx context.Context, conn adapter.Conn) error {
	id := conn.ID()
	if conn.IsOpen() {
		return nil
	}

	m.stmtMu.Lock()
	defer m.stmtMu.Unlock()
	m.monMu.Lock()
	defer m.monMu.Unlock()

	m.states.Store(id, StateRecovering)
	ctx, span := m.tracer.StartSpan(ctx, tracer.SpanReconnect)
	defer span.End()

	m.logger.Warn("connection lost, reconnecting",
		"conn_id", id,
		"max_attempts", m.policy.MaxAttempts,
	)

	attempts, err := m.reopen(ctx, conn)
	if err != nil {
		err = fmt.Errorf("%w: connection %s after %d attempts: %w", ErrReconnectExhausted, id, attempts, err)
		m.metrics.ReconnectsTotal.With("exhausted").Inc()
		tracer.AddReconnectAttributes(span, &tracer.ReconnectMetadata{ConnID: id, Attempts: attempts, Error: err})
		m.logger.Error("reconnect attempts exhausted",
			"conn_id", id,
			"attempts", attempts,
			"error", err,
		)
		m.states.Store(id, StateBroken)
		if m.policy.OnExhaust == ExhaustFatal {
			m.exit(1)
		}
		return err
	}

	if lost := m.txs.lose(id); lost > 0 {
		m.metrics.TransactionsTotal.With("lost").Inc()
		m.metrics.ActiveTransactions.Dec()
		m.logger.Warn("transaction lost on reconnect",
			"conn_id", id,
			"depth", lost,
		)
	}

	m.cache.ClearConn(id)
	replayed := m.replayLocked(ctx, conn)
	resubscribed := m.resubscribeLocked(conn)
	m.states.Store(id, StateAlive)

	m.metrics.ReconnectsTotal.With("success").Inc()
	m.metrics.ReplayedStatementsTotal.Add(float64(replayed))
	tracer.AddReconnectAttributes(span, &tracer.ReconnectMetadata{
		ConnID:       id,
		Attempts:     attempts,
		Replayed:     replayed,
		Resubscribed: resubscribed,
	})
	m.logger.Info("connection recovered",
		"conn_id", id,
		"attempts", attempts,
		"replayed", replayed,
		"resubscribed", resubscribed,
	)
	return nil
}

// reopen tries up to MaxAttempts times, waiting RetryDelay between attempts.
func (m *Manager) reopen(ctx context.Context, conn adapter.Conn) (int, error) {
	var err error
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		m.metrics.ReconnectAttemptsTotal.Inc()
		if err = conn.Reopen(ctx); err == nil {
			return attempt, nil
		}
		m.logger.Warn("reconnect attempt failed",
			"conn_id", conn.ID(),
			"attempt", attempt,
			"error", err,
		)
		if attempt < m.policy.MaxAttempts {
			if serr := util.Sleep(ctx, m.policy.RetryDelay); serr != nil {
				return attempt, serr
			}
		}
	}
	return m.policy.MaxAttempts, err
}

// replayLocked re-prepares every live statement of conn. Caller holds stmtMu.
func (m *Manager) replayLocked(ctx context.Context, conn adapter.Conn) int {
	replayed := 0
	for id, wp := range m.stmts[conn.ID()] {
		q := wp.Value()
		if q == nil {
			delete(m.stmts[conn.ID()], id)
			continue
		}
		ok, err := q.replay(ctx, conn)
		if err != nil {
			m.logger.Warn("statement re-prepare failed",
				"conn_id", conn.ID(),
				"sql", q.sql,
				"error", err,
			)
			continue
		}
		if ok {
			replayed++
		}
	}
	return replayed
}

// resubscribeLocked drops every subscription of conn and lets each monitor of
// conn subscribe again. Caller holds monMu.
func (m *Manager) resubscribeLocked(conn adapter.Conn) int {
	for _, ch := range conn.Subscriptions() {
		if err := conn.Unsubscribe(ch); err != nil {
			m.logger.Warn("unsubscribe failed", "conn_id", conn.ID(), "channel", ch, "error", err)
		}
	}

	n := 0
	for mon := range m.monitors {
		if mon.conn.ID() != conn.ID() {
			continue
		}
		n += mon.resubscribe()
	}
	return n
}

// track registers q as a live statement of connID. Tracking an already
// tracked query is a no-op.
func (m *Manager) track(connID string, q *Query) {
	m.stmtMu.Lock()
	defer m.stmtMu.Unlock()

	if q.trackID != 0 {
		return
	}
	q.trackID = m.nextID.Add(1)
	q.connID = connID

	live, ok := m.stmts[connID]
	if !ok {
		live = make(map[uint64]weak.Pointer[Query])
		m.stmts[connID] = live
	}
	live[q.trackID] = weak.Make(q)
	q.cleanup = runtime.AddCleanup(q, m.forget, liveKey{connID: connID, id: q.trackID, h: q.h})
}

// untrack removes q from the registry.
func (m *Manager) untrack(q *Query) {
	m.stmtMu.Lock()
	defer m.stmtMu.Unlock()

	if q.trackID == 0 {
		return
	}
	q.cleanup.Stop()
	delete(m.stmts[q.connID], q.trackID)
}

type liveKey struct {
	connID string
	id     uint64
	h      *handle
}

// forget drops the entry of a Query that was collected without Close.
func (m *Manager) forget(k liveKey) {
	m.stmtMu.Lock()
	delete(m.stmts[k.connID], k.id)
	m.stmtMu.Unlock()

	if k.h.stmt != nil {
		_ = k.h.stmt.Close()
	}
}

// StatementCount returns the number of live statements.
func (m *Manager) StatementCount() int {
	m.stmtMu.Lock()
	defer m.stmtMu.Unlock()

	n := 0
	for _, live := range m.stmts {
		for _, wp := range live {
			if wp.Value() != nil {
				n++
			}
		}
	}
	return n
}

// Statements returns a snapshot of the live statements, sorted by connection and SQL.
func (m *Manager) Statements() []StatementInfo {
	m.stmtMu.Lock()
	var queries []*Query
	for _, live := range m.stmts {
		for _, wp := range live {
			if q := wp.Value(); q != nil {
				queries = append(queries, q)
			}
		}
	}
	m.stmtMu.Unlock()

	out := make([]StatementInfo, 0, len(queries))
	for _, q := range queries {
		out = append(out, StatementInfo{ConnID: q.connID, SQL: q.sql, Binds: q.Binds()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnID != out[j].ConnID {
			return out[i].ConnID < out[j].ConnID
		}
		return out[i].SQL < out[j].SQL
	})
	return out
}

func (m *Manager) addMonitor(mon *Monitor) {
	m.monMu.Lock()
	m.monitors[mon] = struct{}{}
	m.monMu.Unlock()
}

func (m *Manager) removeMonitor(mon *Monitor) {
	m.monMu.Lock()
	delete(m.monitors, mon)
	m.monMu.Unlock()
}

// MonitorCount returns the number of registered monitors.
func (m *Manager) MonitorCount() int {
	m.monMu.Lock()
	defer m.monMu.Unlock()
	return len(m.monitors)
}

// monitorsOf returns the monitors registered for connID.
func (m *Manager) monitorsOf(connID string) []*Monitor {
	m.monMu.Lock()
	defer m.monMu.Unlock()

	var out []*Monitor
	for mon := range m.monitors {
		if mon.conn.ID() == connID {
			out = append(out, mon)
		}
	}
	return out
}

// channelInUse reports whether a monitor other than except, on the same
// connection, still watches ch.
func (m *Manager) channelInUse(except *Monitor, ch string) bool {
	for _, mon := range m.monitorsOf(except.conn.ID()) {
		if mon != except && mon.watches(ch) {
			return true
		}
	}
	return false
}
