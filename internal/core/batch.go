package core

import (
	"context"
	"fmt"
	"time"

	"github.com/coregx/sqlforge/internal/tracer"
	"github.com/coregx/sqlforge/internal/util"
)

// minStatementLen is the shortest fragment BatchExec treats as a statement.
const minStatementLen = 3

// BatchExec runs a script of ";\n"-separated statements inside one
// transaction. "--" comments are stripped and fragments shorter than three
// characters are skipped. Statements are executed unprepared and never enter
// the statement cache. The first failing statement, or cancellation of ctx,
// rolls everything back.
func (db *DB) BatchExec(ctx context.Context, script string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Close()

	for _, stmt := range util.SplitStatements(script) {
		if util.IsCanceled(ctx) {
			return ctx.Err()
		}
		stmt = util.StripComments(stmt)
		if len(stmt) < minStatementLen {
			continue
		}
		if err := db.execDirect(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// execDirect runs one unprepared statement. A dropped connection is
// recovered, but the statement is not retried: it ran inside the batch
// transaction, which the server discarded.
func (db *DB) execDirect(ctx context.Context, stmt string) error {
	if err := db.manager.CheckAlive(ctx, db.conn); err != nil {
		return db.classify("exec", stmt, err)
	}
	if db.txs.lost(db.conn.ID()) {
		return db.classify("exec", stmt, ErrTxLost)
	}

	ctx, span := db.tracer.StartSpan(ctx, tracer.SpanQueryExecute)
	defer span.End()

	start := time.Now()
	stop := db.watchdog.watch("exec", stmt)
	result, err := db.conn.Exec(ctx, stmt)
	stop()
	if err != nil && !db.conn.IsOpen() {
		if rerr := db.manager.CheckAlive(ctx, db.conn); rerr != nil {
			err = rerr
		} else {
			err = fmt.Errorf("%w: %w", ErrTxLost, err)
		}
	}
	err = db.classify("exec", stmt, err)

	var rowsAffected int64
	if err == nil && result != nil {
		rowsAffected, _ = result.RowsAffected()
	}
	db.observe(ctx, span, newQuery(db, stmt, nil, 0), execution{
		op:           "exec",
		elapsed:      time.Since(start),
		rowsAffected: rowsAffected,
		err:          err,
	})
	return err
}
