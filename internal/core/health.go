package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coregx/sqlforge/internal/adapter"
	"github.com/coregx/sqlforge/internal/logger"
)

// healthPingTimeout bounds a single ping round trip.
const healthPingTimeout = 5 * time.Second

// pingResult is the outcome of one liveness check.
type pingResult struct {
	err      error
	at       time.Time
	failures int // consecutive
}

// healthChecker pings the pinned session on a ticker and hands a dead session
// to the Manager, so recovery happens before the next statement needs it.
type healthChecker struct {
	conn     adapter.Conn
	manager  *Manager
	logger   logger.Logger
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	last   atomic.Pointer[pingResult]
}

func newHealthChecker(conn adapter.Conn, manager *Manager, log logger.Logger, interval time.Duration) *healthChecker {
	ctx, cancel := context.WithCancel(context.Background())
	h := &healthChecker{
		conn:     conn,
		manager:  manager,
		logger:   log,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.last.Store(&pingResult{})
	return h
}

func (h *healthChecker) start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.check()
			case <-h.ctx.Done():
				return
			}
		}
	}()
}

// check runs one ping. A ping is skipped while another caller is already
// recovering the connection.
func (h *healthChecker) check() {
	if h.manager.State(h.conn.ID()) == StateRecovering {
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, healthPingTimeout)
	err := h.conn.Ping(ctx)
	cancel()

	if err != nil && !h.conn.IsOpen() {
		h.logger.Warn("database health check failed",
			"conn_id", h.conn.ID(),
			"error", err)
		err = h.manager.CheckAlive(h.ctx, h.conn)
	}

	prev := h.last.Load()
	next := &pingResult{err: err, at: time.Now()}
	if err != nil {
		next.failures = prev.failures + 1
		h.logger.Error("database unhealthy",
			"conn_id", h.conn.ID(),
			"consecutive_failures", next.failures,
			"error", err)
	} else if prev.failures > 0 {
		h.logger.Info("database healthy again",
			"conn_id", h.conn.ID(),
			"after_failures", prev.failures)
	}
	h.last.Store(next)
}

// shutdown stops pinging and waits for an in-flight ping to return.
func (h *healthChecker) shutdown() {
	h.cancel()
	h.wg.Wait()
}

// isHealthy reports whether the last ping succeeded, recovery included.
func (h *healthChecker) isHealthy() bool {
	return h.last.Load().err == nil
}

func (h *healthChecker) lastCheck() time.Time {
	return h.last.Load().at
}
