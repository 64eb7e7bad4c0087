package dialects

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// CurrentTimestamp returns CURRENT_TIMESTAMP.
func (d *SQLiteDialect) CurrentTimestamp() string { return "CURRENT_TIMESTAMP" }

// SupportsOnly returns false, SQLite has no table inheritance.
func (d *SQLiteDialect) SupportsOnly() bool { return false }

// IsLockError matches SQLITE_BUSY and SQLITE_LOCKED from either driver.
func (d *SQLiteDialect) IsLockError(err error) bool {
	if err == nil {
		return false
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		code := sqErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	if busy, ok := cgoLockError(err); ok {
		return busy
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// IsConnectionError matches the generic database/sql connection failures.
func (d *SQLiteDialect) IsConnectionError(err error) bool {
	return isConnectionError(err)
}
