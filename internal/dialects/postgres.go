package dialects

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// PostgreSQL error codes used for classification.
const (
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
	pgAdminShutdown    = "57P01"
	pgCrashShutdown    = "57P02"
	pgConnectionClass  = "08"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// CurrentTimestamp returns now().
func (d *PostgresDialect) CurrentTimestamp() string { return "now()" }

// SupportsOnly returns true, PostgreSQL has table inheritance.
func (d *PostgresDialect) SupportsOnly() bool { return true }

// IsLockError matches lock_not_available (raised by NOWAIT) and deadlocks.
func (d *PostgresDialect) IsLockError(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgLockNotAvailable || pqErr.Code == pgDeadlockDetected
	}
	msg := err.Error()
	return strings.Contains(msg, "("+pgLockNotAvailable+")") || strings.Contains(msg, "could not obtain lock")
}

// IsConnectionError matches the connection exception class and server shutdowns.
func (d *PostgresDialect) IsConnectionError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == pgConnectionClass ||
			pqErr.Code == pgAdminShutdown || pqErr.Code == pgCrashShutdown
	}
	return isConnectionError(err)
}
