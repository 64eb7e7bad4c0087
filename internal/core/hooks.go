package core

import (
	"context"
	"time"
)

// QueryEvent describes one finished statement execution.
type QueryEvent struct {
	SQL  string // canonical placeholders, before driver rewriting
	Args []any  // positional values in :0, :1, ... order; named binds are not included
	// ConnID identifies the session the statement ran on.
	ConnID string
	// Duration covers the whole call, recovery and retry included.
	Duration     time.Duration
	RowsAffected int64
	Error        error
	// Operation is SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
	Operation string
	// Cached is set when the prepared handle came from the statement cache.
	Cached bool
	// Retried is set when the statement ran again after a reconnect.
	Retried bool
}

// QueryHook observes every statement execution. It runs synchronously on the
// executing goroutine after logging, tracing and metrics.
//
//	db, _ := sqlforge.Open("postgres", dsn,
//	    sqlforge.WithQueryHook(func(ctx context.Context, e sqlforge.QueryEvent) {
//	        if e.Retried {
//	            slog.Warn("statement survived a reconnect", "sql", e.SQL, "conn", e.ConnID)
//	        }
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook == nil {
		return
	}
	event.ConnID = db.conn.ID()
	db.queryHook(ctx, event)
}
