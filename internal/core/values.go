package core

import (
	"fmt"

	"github.com/coregx/sqlforge/internal/schema"
)

// nowValue marks a value the server resolves at execution time.
type nowValue struct{}

// defaultValue marks a column that takes its declared default.
type defaultValue struct{}

var (
	// Now renders the dialect's current-timestamp expression instead of a bound value.
	Now = nowValue{}
	// Default renders the DEFAULT keyword instead of a bound value.
	Default = defaultValue{}
)

// Placeholder is a named placeholder such as ":user_id", bound later with
// Query.Bind. It renders unchanged.
type Placeholder string

// P validates name and returns it as a Placeholder. It panics if name does not
// start with ':', is shorter than two characters or continues with a digit,
// which would collide with the auto-numbered placeholders.
func P(name string) Placeholder {
	validatePlaceholder(name)
	return Placeholder(name)
}

func validatePlaceholder(name string) {
	if len(name) < 2 || name[0] != ':' || isDigit(name[1]) {
		panic(fmt.Sprintf("sqlforge: invalid placeholder %q", name))
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// columnName resolves a column argument: a literal name or a schema.ColumnRef.
func columnName(col any) string {
	switch c := col.(type) {
	case string:
		return c
	case schema.ColumnRef:
		return c.QualifiedName()
	}
	panic(fmt.Sprintf("sqlforge: expected column name or schema.ColumnRef, got %T", col))
}

// targetName resolves a column assigned by INSERT or UPDATE. Targets are
// never table-qualified.
func targetName(col any) string {
	if c, ok := col.(schema.ColumnRef); ok {
		return c.ColumnName()
	}
	return columnName(col)
}

// tableName resolves a table argument: a literal name or a schema.TableRef.
func tableName(table any) string {
	switch t := table.(type) {
	case string:
		return t
	case schema.TableRef:
		return t.Name()
	}
	panic(fmt.Sprintf("sqlforge: expected table name or schema.TableRef, got %T", table))
}

// columnRef resolves a column argument used on the right side of a comparison.
func columnRef(col any) schema.ColumnRef {
	if c, ok := col.(schema.ColumnRef); ok {
		return c
	}
	return schema.Named(columnName(col))
}
