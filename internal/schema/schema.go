// Package schema defines the column and table descriptors consumed by the statement
// builders. Descriptors are plain immutable values supplied by whatever catalogue the
// application uses (static definitions, code generation or reflection).
package schema

import "strings"

// Type is the declared SQL type of a column.
type Type int

// Supported column types.
const (
	Unknown Type = iota
	Text
	Bool
	UUID
	Int
	Float
	Timestamp
	Time
	Date
	Bytes
)

var typeNames = [...]string{
	Unknown:   "unknown",
	Text:      "text",
	Bool:      "bool",
	UUID:      "uuid",
	Int:       "int",
	Float:     "float",
	Timestamp: "timestamp",
	Time:      "time",
	Date:      "date",
	Bytes:     "bytes",
}

// String returns the lower-case type name.
func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "unknown"
	}
	return typeNames[t]
}

// Constraint is a set of column constraint flags.
type Constraint uint8

// Column constraint flags.
const (
	NotNull Constraint = 1 << iota
	Unique
	PrimaryKey
	ForeignKey
)

// Has reports whether all flags in c2 are set.
func (c Constraint) Has(c2 Constraint) bool {
	return c&c2 == c2
}

// String lists the set flags, e.g. "NOT NULL|UNIQUE".
func (c Constraint) String() string {
	var parts []string
	if c.Has(NotNull) {
		parts = append(parts, "NOT NULL")
	}
	if c.Has(Unique) {
		parts = append(parts, "UNIQUE")
	}
	if c.Has(PrimaryKey) {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Has(ForeignKey) {
		parts = append(parts, "FOREIGN KEY")
	}
	return strings.Join(parts, "|")
}

// ColumnRef is the catalogue view of a column.
type ColumnRef interface {
	// ColumnName is the bare column name, used for INSERT and UPDATE targets.
	ColumnName() string
	// QualifiedName is used everywhere else.
	QualifiedName() string
	SQLType() Type
	Constraints() Constraint
}

// TableRef is the catalogue view of a table.
type TableRef interface {
	Name() string
}

// Column is an immutable column descriptor.
type Column struct {
	name        string
	short       string
	typ         Type
	maxSize     int
	constraints Constraint
	references  string
}

// NewColumn creates a column descriptor. name should be the qualified name
// ("table.column") the builders will render.
func NewColumn(name string, typ Type, constraints Constraint) Column {
	short := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		short = name[i+1:]
	}
	return Column{name: name, short: short, typ: typ, maxSize: -1, constraints: constraints}
}

// Named returns an untyped column reference for a literal column name or expression.
func Named(name string) Column {
	return Column{name: name, short: name, typ: Unknown, maxSize: -1}
}

// WithMaxSize returns a copy of c with the given maximum size.
func (c Column) WithMaxSize(n int) Column {
	c.maxSize = n
	return c
}

// WithReference returns a copy of c marked as a foreign key to target ("table.column").
func (c Column) WithReference(target string) Column {
	c.constraints |= ForeignKey
	c.references = target
	return c
}

// ColumnName returns the column name without its table.
func (c Column) ColumnName() string { return c.short }

// QualifiedName returns the name used in conditions, selections and ordering.
func (c Column) QualifiedName() string { return c.name }

// SQLType returns the declared type.
func (c Column) SQLType() Type { return c.typ }

// MaxSize returns the maximum size, or -1 when unbounded.
func (c Column) MaxSize() int { return c.maxSize }

// Constraints returns the constraint flags.
func (c Column) Constraints() Constraint { return c.constraints }

// References returns the foreign key target, if any.
func (c Column) References() string { return c.references }

// Table is a table descriptor.
type Table struct {
	name string
}

// NewTable creates a table descriptor.
func NewTable(name string) Table {
	return Table{name: name}
}

// Name returns the table name.
func (t Table) Name() string { return t.name }

// Column creates a column of this table, qualified with the table name.
func (t Table) Column(name string, typ Type, constraints Constraint) Column {
	return NewColumn(t.name+"."+name, typ, constraints)
}

// Comparable reports whether two columns can be compared with each other.
// Untyped columns are comparable with anything.
func Comparable(a, b ColumnRef) bool {
	ta, tb := a.SQLType(), b.SQLType()
	return ta == Unknown || tb == Unknown || ta == tb
}
