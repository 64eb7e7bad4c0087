// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite: identifier quoting, positional placeholders,
// the server-side timestamp expression, and classification of driver errors.
package dialects

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"sync"
)

// Dialect defines database-specific behaviors.
type Dialect interface {
	// Name returns the canonical dialect name.
	Name() string
	// QuoteIdentifier quotes a single identifier (used for column aliases).
	QuoteIdentifier(string) string
	// Placeholder returns the driver's placeholder for the 1-based position.
	Placeholder(int) string
	// CurrentTimestamp returns the expression evaluated by the server as "now".
	CurrentTimestamp() string
	// SupportsOnly reports whether UPDATE/DELETE accept the ONLY keyword
	// to exclude inheriting tables.
	SupportsOnly() bool
	// IsLockError reports whether err signals lock contention.
	IsLockError(error) bool
	// IsConnectionError reports whether err signals a lost connection.
	IsConnectionError(error) bool
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// isConnectionError covers the failure modes shared by every database/sql driver.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
