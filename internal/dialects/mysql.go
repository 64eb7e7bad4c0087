package dialects

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers used for classification.
const (
	myLockWaitTimeout = 1205
	myDeadlock        = 1213
	myLockNoWait      = 3572
	myServerGone      = 2006
	myServerLost      = 2013
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// CurrentTimestamp returns NOW().
func (d *MySQLDialect) CurrentTimestamp() string { return "NOW()" }

// SupportsOnly returns false, MySQL has no table inheritance.
func (d *MySQLDialect) SupportsOnly() bool { return false }

// IsLockError matches lock wait timeouts, deadlocks and NOWAIT failures.
func (d *MySQLDialect) IsLockError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myLockWaitTimeout, myDeadlock, myLockNoWait:
			return true
		}
	}
	return false
}

// IsConnectionError matches invalid connections and lost-server errors.
func (d *MySQLDialect) IsConnectionError(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == myServerGone || myErr.Number == myServerLost
	}
	return isConnectionError(err)
}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}
