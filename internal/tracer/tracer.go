// Package tracer provides the tracing abstraction used around statement
// execution, transaction control and connection recovery, with a no-op default
// and an OpenTelemetry adapter.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer defines the tracing interface.
type Tracer interface {
	// StartSpan starts a new tracing span with the given name
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span represents a tracing span that captures the execution of an operation.
type Span interface {
	// SetAttributes sets key-value attributes on the span
	SetAttributes(attrs ...attribute.KeyValue)
	// RecordError records an error that occurred during the span
	RecordError(err error)
	// SetStatus sets the status code and description of the span
	SetStatus(code codes.Code, description string)
	// End marks the span as complete
	End()
}

// NoopTracer is a tracer that does nothing (zero overhead when tracing is disabled).
// This is the default tracer used when no tracing is configured.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer wraps an OpenTelemetry tracer to implement the Tracer interface.
// This allows seamless integration with OpenTelemetry-based observability systems.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
// The provided tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a new OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets OpenTelemetry attributes on the span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the OpenTelemetry span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the OpenTelemetry span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the OpenTelemetry span.
func (s *OtelSpan) End() {
	s.span.End()
}

// Span names.
const (
	SpanQueryExecute = "sqlforge.query.execute"
	SpanQueryRows    = "sqlforge.query.rows"
	SpanReconnect    = "sqlforge.reconnect"
	SpanTxBegin      = "sqlforge.tx.begin"
	SpanTxCommit     = "sqlforge.tx.commit"
	SpanTxRollback   = "sqlforge.tx.rollback"
)

// QueryMetadata describes one statement execution.
// Attribute names follow the OpenTelemetry database semantic conventions
// where one exists.
type QueryMetadata struct {
	// SQL is the canonical statement text (":N" placeholders).
	SQL string
	// Params is the number of bound values.
	Params int
	// Database is the database system name (postgres, mysql, sqlite).
	Database string
	// ConnID is the logical connection identity.
	ConnID string
	// Duration is how long the execution took.
	Duration time.Duration
	// RowsAffected is the number of rows affected (for INSERT/UPDATE/DELETE).
	RowsAffected int64
	// Cached reports whether the prepared handle came from the statement cache.
	Cached bool
	// Retried reports whether the execution was repeated after a reconnect.
	Retried bool
	// Error is any error that occurred during execution.
	Error error
	// ErrorKind classifies Error (database, lock, connection).
	ErrorKind string
}

// AddQueryAttributes adds database semantic convention attributes to a span
// and sets its status.
// See: https://opentelemetry.io/docs/specs/semconv/database/
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", DetectOperation(meta.SQL)),
		attribute.String("db.connection_id", meta.ConnID),
		attribute.Int("db.params", meta.Params),
		attribute.Bool("db.stmt_cached", meta.Cached),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}

	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}
	if meta.Retried {
		attrs = append(attrs, attribute.Bool("db.retried", true))
	}
	if meta.ErrorKind != "" {
		attrs = append(attrs, attribute.String("db.error_kind", meta.ErrorKind))
	}

	span.SetAttributes(attrs...)
	setStatus(span, meta.Error)
}

// ReconnectMetadata describes one connection recovery.
type ReconnectMetadata struct {
	ConnID       string
	Attempts     int
	Replayed     int
	Resubscribed int
	Error        error
}

// AddReconnectAttributes adds recovery attributes to a span and sets its status.
func AddReconnectAttributes(span Span, meta *ReconnectMetadata) {
	span.SetAttributes(
		attribute.String("db.connection_id", meta.ConnID),
		attribute.Int("sqlforge.reconnect.attempts", meta.Attempts),
		attribute.Int("sqlforge.reconnect.replayed", meta.Replayed),
		attribute.Int("sqlforge.reconnect.resubscribed", meta.Resubscribed),
	)
	setStatus(span, meta.Error)
}

// AddTxAttributes adds transaction scope attributes to a span and sets its status.
func AddTxAttributes(span Span, connID string, depth int, err error) {
	span.SetAttributes(
		attribute.String("db.connection_id", connID),
		attribute.Int("sqlforge.tx.depth", depth),
	)
	setStatus(span, err)
}

func setStatus(span Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// DetectOperation detects the SQL operation type from the statement text.
// Returns one of: SELECT, INSERT, UPDATE, DELETE, or UNKNOWN.
func DetectOperation(sql string) string {
	sql = strings.TrimSpace(sql)
	if len(sql) > 6 {
		sql = sql[:6]
	}
	switch strings.ToUpper(sql) {
	case "SELECT":
		return "SELECT"
	case "INSERT":
		return "INSERT"
	case "UPDATE":
		return "UPDATE"
	case "DELETE":
		return "DELETE"
	}
	if strings.HasPrefix(strings.ToUpper(sql), "WITH") {
		return "SELECT"
	}
	return "UNKNOWN"
}
