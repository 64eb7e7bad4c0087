// Package sqlforge assembles SQL statements from typed builders and runs them
// over a single pinned database session. It adds a prepared-statement cache,
// reference-counted nested transactions and transparent connection recovery
// that re-prepares live statements and restores notification subscriptions.
// PostgreSQL, MySQL and SQLite are supported.
package sqlforge

import (
	"github.com/coregx/sqlforge/internal/core"
	"github.com/coregx/sqlforge/internal/logger"
	"github.com/coregx/sqlforge/internal/schema"
	"github.com/coregx/sqlforge/internal/tracer"
)

type (
	// DB is a database handle pinned to one session.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Stats is a point-in-time snapshot of a DB.
	Stats = core.Stats

	// Query is an executable statement produced by a builder.
	Query = core.Query
	// QueryBuilder creates statement builders for a DB.
	QueryBuilder = core.QueryBuilder
	// SelectBuilder assembles SELECT statements.
	SelectBuilder = core.SelectBuilder
	// InsertBuilder assembles INSERT statements.
	InsertBuilder = core.InsertBuilder
	// UpdateBuilder assembles UPDATE statements.
	UpdateBuilder = core.UpdateBuilder
	// DeleteBuilder assembles DELETE statements.
	DeleteBuilder = core.DeleteBuilder
	// Params holds named parameter values.
	Params = core.Params
	// Placeholder is a named parameter used as a value.
	Placeholder = core.Placeholder

	// Condition is a node of a WHERE tree.
	Condition = core.Condition
	// Leaf is a single comparison.
	Leaf = core.Leaf
	// Group joins conditions with AND or OR.
	Group = core.Group

	// Tx is one nesting level of a transaction.
	Tx = core.Tx

	// Monitor subscribes to table and value change notifications.
	Monitor = core.Monitor
	// MonitorHandler receives dispatched notifications.
	MonitorHandler = core.MonitorHandler

	// Manager owns connection recovery and the live statement registry.
	Manager = core.Manager
	// ReconnectPolicy controls connection recovery.
	ReconnectPolicy = core.ReconnectPolicy
	// ExhaustPolicy selects what happens when recovery gives up.
	ExhaustPolicy = core.ExhaustPolicy

	// QueryEvent describes a finished statement execution.
	QueryEvent = core.QueryEvent
	// QueryHook observes statement executions.
	QueryHook = core.QueryHook

	// Error is a failed database call with its classification.
	Error = core.Error
	// ErrorKind classifies database errors.
	ErrorKind = core.ErrorKind

	// Logger is the leveled key-value logging interface.
	Logger = logger.Logger
	// Tracer starts spans around database calls.
	Tracer = tracer.Tracer

	// Table describes a table for typed column references.
	Table = schema.Table
	// Column is an immutable column descriptor.
	Column = schema.Column
	// ColumnRef is a column usable in builders and conditions.
	ColumnRef = schema.ColumnRef
	// ColumnType is the declared SQL type of a column.
	ColumnType = schema.Type
	// Constraint is a set of column constraint flags.
	Constraint = schema.Constraint
)

// Constructors and options.
var (
	Open        = core.Open
	OpenContext = core.OpenContext
	WrapDB      = core.WrapDB
	WrapConn    = core.WrapConn

	WithLogger            = core.WithLogger
	WithSensitiveFields   = core.WithSensitiveFields
	WithTracer            = core.WithTracer
	WithMetrics           = core.WithMetrics
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithWatchdog          = core.WithWatchdog
	WithHealthCheck       = core.WithHealthCheck
	WithReconnectPolicy   = core.WithReconnectPolicy
	WithQueryHook         = core.WithQueryHook
	WithExitFunc          = core.WithExitFunc
	WithConnectionID      = core.WithConnectionID

	DefaultReconnectPolicy = core.DefaultReconnectPolicy

	// NewQueryBuilder returns a builder that renders SQL for dialect without
	// a database; its queries cannot be executed.
	NewQueryBuilder = core.NewQueryBuilder

	NewSlogLogger    = logger.NewSlogAdapter
	NewZerologLogger = logger.NewZerologAdapter
	NewOtelTracer    = tracer.NewOtelTracer

	NewTable    = schema.NewTable
	NamedColumn = schema.Named
)

// Condition builders.
var (
	Eq        = core.Eq
	Ne        = core.Ne
	Is        = core.Is
	IsNot     = core.IsNot
	Lt        = core.Lt
	Le        = core.Le
	Gt        = core.Gt
	Ge        = core.Ge
	Like      = core.Like
	IsNull    = core.IsNull
	IsNotNull = core.IsNotNull
	ColumnEq  = core.ColumnEq
	And       = core.And
	Or        = core.Or
	P         = core.P
)

// Literal values.
var (
	Now     = core.Now
	Default = core.Default
)

// Errors.
var (
	ErrNoRows             = core.ErrNoRows
	ErrTxDone             = core.ErrTxDone
	ErrTxLost             = core.ErrTxLost
	ErrCombineNonEmpty    = core.ErrCombineNonEmpty
	ErrReconnectExhausted = core.ErrReconnectExhausted
	ErrNotAttached        = core.ErrNotAttached
	ErrQueryClosed        = core.ErrQueryClosed

	IsLockError       = core.IsLockError
	IsConnectionError = core.IsConnectionError

	TableChannel = core.TableChannel
	ValueChannel = core.ValueChannel
)

// Error kinds.
const (
	KindDatabase   = core.KindDatabase
	KindLock       = core.KindLock
	KindConnection = core.KindConnection
)

// Exhaustion policies.
const (
	ExhaustReturnError = core.ExhaustReturnError
	ExhaustFatal       = core.ExhaustFatal
)

// Join kinds, sort orders and set operations.
const (
	InnerJoin      = core.InnerJoin
	LeftOuterJoin  = core.LeftOuterJoin
	RightOuterJoin = core.RightOuterJoin
	FullOuterJoin  = core.FullOuterJoin
	CrossJoin      = core.CrossJoin

	Asc  = core.Asc
	Desc = core.Desc

	Union    = core.Union
	UnionAll = core.UnionAll
)

// Column types and constraints.
const (
	TypeUnknown   = schema.Unknown
	TypeText      = schema.Text
	TypeBool      = schema.Bool
	TypeUUID      = schema.UUID
	TypeInt       = schema.Int
	TypeFloat     = schema.Float
	TypeTimestamp = schema.Timestamp
	TypeTime      = schema.Time
	TypeDate      = schema.Date
	TypeBytes     = schema.Bytes

	NotNull    = schema.NotNull
	Unique     = schema.Unique
	PrimaryKey = schema.PrimaryKey
	ForeignKey = schema.ForeignKey
)
