// Package metrics exposes Prometheus instrumentation for statement execution,
// transactions, connection recovery and the prepared-statement cache.
//
// Every metric is an interface with a no-op implementation, so instrumented code
// never checks whether metrics are enabled.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sqlforge"

// Histogram observes samples.
type Histogram interface {
	Observe(float64)
}

// Counter is a monotonically increasing value.
type Counter interface {
	Inc()
	Add(float64)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

// CounterVec is a family of counters partitioned by labels.
type CounterVec interface {
	With(labels ...string) Counter
}

// HistogramVec is a family of histograms partitioned by labels.
type HistogramVec interface {
	With(labels ...string) Histogram
}

// NoopStat discards every observation.
type NoopStat struct{}

func (NoopStat) Observe(float64) {}
func (NoopStat) Inc()            {}
func (NoopStat) Dec()            {}
func (NoopStat) Add(float64)     {}
func (NoopStat) Set(float64)     {}

type noopCounterVec struct{}
type noopHistogramVec struct{}

func (noopCounterVec) With(...string) Counter     { return NoopStat{} }
func (noopHistogramVec) With(...string) Histogram { return NoopStat{} }

type prometheusCounterVec struct {
	vec *prometheus.CounterVec
}

func (p *prometheusCounterVec) With(labelValues ...string) Counter {
	return p.vec.WithLabelValues(labelValues...)
}

type prometheusHistogramVec struct {
	vec *prometheus.HistogramVec
}

func (p *prometheusHistogramVec) With(labelValues ...string) Histogram {
	return p.vec.WithLabelValues(labelValues...)
}

// QueryBuckets for statement latencies, in seconds.
var QueryBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds the instruments used by one database handle.
type Metrics struct {
	// QueriesTotal counts executions by operation and result (ok, error, lock, connection).
	QueriesTotal CounterVec
	// QueryDurationSeconds measures execution latency by operation.
	QueryDurationSeconds HistogramVec
	// ReconnectAttemptsTotal counts individual reopen attempts.
	ReconnectAttemptsTotal Counter
	// ReconnectsTotal counts recoveries by result (success, exhausted).
	ReconnectsTotal CounterVec
	// ReplayedStatementsTotal counts statements re-prepared after a reconnect.
	ReplayedStatementsTotal Counter
	// TransactionsTotal counts physical transaction outcomes (commit, rollback, auto_rollback).
	TransactionsTotal CounterVec
	// ActiveTransactions tracks open physical transactions.
	ActiveTransactions Gauge

	reg   prometheus.Registerer
	owned []prometheus.Collector
}

// Noop returns metrics that record nothing.
func Noop() *Metrics {
	return &Metrics{
		QueriesTotal:            noopCounterVec{},
		QueryDurationSeconds:    noopHistogramVec{},
		ReconnectAttemptsTotal:  NoopStat{},
		ReconnectsTotal:         noopCounterVec{},
		ReplayedStatementsTotal: NoopStat{},
		TransactionsTotal:       noopCounterVec{},
		ActiveTransactions:      NoopStat{},
	}
}

// New creates the metrics of the connection connID and registers them with
// reg. Every series carries a conn_id label, so handles of different
// connections share one registry. Collectors already registered for the same
// connection are reused. A nil reg yields Noop.
func New(reg prometheus.Registerer, connID string) (*Metrics, error) {
	if reg == nil {
		return Noop(), nil
	}
	m := &Metrics{reg: prometheus.WrapRegistererWith(prometheus.Labels{"conn_id": connID}, reg)}

	queries, err := register(m, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Statement executions by operation and result.",
	}, []string{"operation", "result"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(m, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_duration_seconds",
		Help:      "Statement execution latency by operation.",
		Buckets:   QueryBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	attempts, err := register(m, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnect_attempts_total",
		Help:      "Connection reopen attempts.",
	}))
	if err != nil {
		return nil, err
	}
	reconnects, err := register(m, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconnects_total",
		Help:      "Connection recoveries by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	replayed, err := register(m, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "replayed_statements_total",
		Help:      "Statements re-prepared and re-bound after a reconnect.",
	}))
	if err != nil {
		return nil, err
	}
	txs, err := register(m, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Physical transaction outcomes.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	active, err := register(m, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_transactions",
		Help:      "Open physical transactions.",
	}))
	if err != nil {
		return nil, err
	}

	m.QueriesTotal = &prometheusCounterVec{vec: queries}
	m.QueryDurationSeconds = &prometheusHistogramVec{vec: duration}
	m.ReconnectAttemptsTotal = attempts
	m.ReconnectsTotal = &prometheusCounterVec{vec: reconnects}
	m.ReplayedStatementsTotal = replayed
	m.TransactionsTotal = &prometheusCounterVec{vec: txs}
	m.ActiveTransactions = active
	return m, nil
}

// register adds c to the registry, or returns the equal collector registered
// before it.
func register[C prometheus.Collector](m *Metrics, c C) (C, error) {
	err := m.reg.Register(c)
	if err == nil {
		m.owned = append(m.owned, c)
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}

// CacheStats is the snapshot read by the cache collectors.
type CacheStats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// RegisterCacheStats exposes statement cache statistics read from stats at
// scrape time. Collectors left by an earlier handle of the same connection
// are replaced. It is a no-op for Noop metrics.
func (m *Metrics) RegisterCacheStats(stats func() CacheStats) error {
	if m.reg == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stmt_cache",
			Name:      "size",
			Help:      "Prepared statements currently cached.",
		}, func() float64 { return float64(stats().Size) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stmt_cache",
			Name:      "hits_total",
			Help:      "Prepared statement cache hits.",
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stmt_cache",
			Name:      "misses_total",
			Help:      "Prepared statement cache misses.",
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stmt_cache",
			Name:      "evictions_total",
			Help:      "Prepared statements evicted from the cache.",
		}, func() float64 { return float64(stats().Evictions) }),
	}
	for _, c := range collectors {
		err := m.reg.Register(c)
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			m.reg.Unregister(are.ExistingCollector)
			err = m.reg.Register(c)
		}
		if err != nil {
			return err
		}
		m.owned = append(m.owned, c)
	}
	return nil
}

// Unregister removes every collector this Metrics registered.
func (m *Metrics) Unregister() {
	if m.reg == nil {
		return
	}
	for _, c := range m.owned {
		m.reg.Unregister(c)
	}
	m.owned = nil
}
