package core

import (
	"time"

	"github.com/coregx/sqlforge/internal/logger"
)

// watchdog warns about single statements that block longer than timeout.
// A nil watchdog watches nothing.
type watchdog struct {
	timeout time.Duration
	logger  logger.Logger
}

func newWatchdog(timeout time.Duration, log logger.Logger) *watchdog {
	if timeout <= 0 {
		return nil
	}
	return &watchdog{timeout: timeout, logger: log}
}

// watch arms the watchdog for one call. The returned func disarms it.
func (w *watchdog) watch(op, sql string) func() {
	if w == nil {
		return func() {}
	}
	start := time.Now()
	t := time.AfterFunc(w.timeout, func() {
		w.logger.Warn("statement blocked past watchdog timeout",
			"operation", op,
			"sql", sql,
			"timeout", w.timeout,
			"elapsed", time.Since(start),
		)
	})
	return func() { t.Stop() }
}
