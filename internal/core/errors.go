package core

import (
	"database/sql"
	"errors"
)

// Predefined errors returned by sqlforge operations.
var (
	// ErrNoRows is returned when a query that expects rows returns no results.
	ErrNoRows = sql.ErrNoRows
	// ErrTxDone is returned when committing a scope that was already committed or rolled back.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
	// ErrTxLost is returned when the connection was recovered while a transaction was open;
	// the server discarded the transaction.
	ErrTxLost = errors.New("transaction lost on reconnect")
	// ErrCombineNonEmpty is returned when combining into a builder that already has state.
	ErrCombineNonEmpty = errors.New("cannot combine into a non-empty select builder")
	// ErrReconnectExhausted is returned when every reconnect attempt failed.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	// ErrNotAttached is returned when executing a query built by a detached builder.
	ErrNotAttached = errors.New("query is not attached to a database")
	// ErrQueryClosed is returned when executing a closed query.
	ErrQueryClosed = errors.New("query is closed")
)

// ErrorKind classifies database errors.
type ErrorKind int

// Error kinds.
const (
	// KindDatabase is any error reported by the database: syntax, constraint, type.
	KindDatabase ErrorKind = iota
	// KindLock is lock contention or a deadlock. Callers may retry.
	KindLock
	// KindConnection is a lost connection that could not be recovered transparently.
	KindConnection
)

// String returns the lower-case kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindLock:
		return "lock"
	case KindConnection:
		return "connection"
	default:
		return "database"
	}
}

// Error is a failed database operation.
type Error struct {
	// Op is the failed operation: prepare, exec, query, begin, commit, rollback.
	Op string
	// SQL is the statement text, if any.
	SQL  string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return e.Op + " failed (" + e.Kind.String() + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsLockError reports whether err is a lock contention error.
func IsLockError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindLock
}

// IsConnectionError reports whether err is an unrecovered connection error.
func IsConnectionError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConnection
}

// classify wraps a driver error into *Error. Usage errors such as
// ErrQueryClosed are returned unchanged.
func (db *DB) classify(op, sql string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, ErrQueryClosed), errors.Is(err, ErrNotAttached), errors.Is(err, ErrTxDone):
		return err
	case errors.Is(err, ErrReconnectExhausted), errors.Is(err, ErrTxLost):
		return &Error{Op: op, SQL: sql, Kind: KindConnection, Err: err}
	case db.dialect.IsLockError(err):
		return &Error{Op: op, SQL: sql, Kind: KindLock, Err: err}
	case db.dialect.IsConnectionError(err):
		return &Error{Op: op, SQL: sql, Kind: KindConnection, Err: err}
	}
	return &Error{Op: op, SQL: sql, Kind: KindDatabase, Err: err}
}
