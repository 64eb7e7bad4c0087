// Package adapter defines the driver boundary used by the statement layer and
// implements it on top of database/sql.
//
// A Conn is one logical database session. Statements are prepared against it
// with SQL that uses the canonical placeholder syntax (":0", ":1", ":name");
// the adapter rewrites them into the driver's own style at prepare time.
package adapter

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrNotificationsUnsupported is returned by Subscribe when the driver has no
	// change-notification channel.
	ErrNotificationsUnsupported = errors.New("adapter: notifications not supported by driver")
	// ErrMissingBind is returned when a statement is executed without a value
	// for one of its placeholders.
	ErrMissingBind = errors.New("adapter: missing bind")
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("adapter: connection closed")
)

// Binds maps placeholder names (":0", ":name") to values.
type Binds map[string]any

// Notification is a change notification received on a subscribed channel.
type Notification struct {
	Channel string
	Payload string
}

// Stmt is a prepared statement handle.
type Stmt interface {
	Exec(ctx context.Context, binds Binds) (sql.Result, error)
	Query(ctx context.Context, binds Binds) (*sql.Rows, error)
	Close() error
}

// Conn is the minimal connection interface the statement layer depends on.
type Conn interface {
	// ID identifies the logical connection across reopens.
	ID() string
	// DriverName returns the database/sql driver name, used to pick a dialect.
	DriverName() string

	IsOpen() bool
	Ping(ctx context.Context) error
	Reopen(ctx context.Context) error

	Prepare(ctx context.Context, query string) (Stmt, error)
	// Exec runs a statement without placeholders unprepared.
	Exec(ctx context.Context, query string) (sql.Result, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Subscribe(channel string) error
	Unsubscribe(channel string) error
	Subscriptions() []string
	Notifications() <-chan Notification

	Close() error
}
