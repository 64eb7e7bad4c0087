package core

import "strings"

type insertColumn struct {
	name     string
	value    any
	hasValue bool
}

// InsertBuilder builds an INSERT statement.
//
// With no columns it renders "INSERT INTO t DEFAULT VALUES". Columns added
// without a value, and every column in default-values mode, render DEFAULT.
type InsertBuilder struct {
	stmt

	columns       []insertColumn
	defaultValues bool
}

// Value adds a column with a value. v may be Now, Default, nil (NULL) or a
// Placeholder; anything else is bound.
func (ib *InsertBuilder) Value(col, v any) *InsertBuilder {
	ib.mutate()
	if p, ok := v.(Placeholder); ok {
		validatePlaceholder(string(p))
	}
	ib.columns = append(ib.columns, insertColumn{name: targetName(col), value: v, hasValue: true})
	return ib
}

// Column adds a column that takes its default.
func (ib *InsertBuilder) Column(col any) *InsertBuilder {
	ib.mutate()
	ib.columns = append(ib.columns, insertColumn{name: targetName(col)})
	return ib
}

// DefaultValues ignores every value and inserts defaults.
func (ib *InsertBuilder) DefaultValues() *InsertBuilder {
	ib.mutate()
	ib.defaultValues = true
	return ib
}

// SQL renders the statement once and returns its text.
func (ib *InsertBuilder) SQL() string { return ib.assemble(ib.render) }

// Params returns the bound values in placeholder order.
func (ib *InsertBuilder) Params() []any { return ib.params(ib.render) }

// Build returns the executable query. Repeated calls return the same Query.
func (ib *InsertBuilder) Build() *Query { return ib.build(ib.render) }

// Invalidate unfreezes the statement and closes its query.
func (ib *InsertBuilder) Invalidate() *InsertBuilder {
	ib.invalidate()
	return ib
}

func (ib *InsertBuilder) render() string {
	var b strings.Builder
	b.WriteString("INSERT INTO " + ib.table)

	if len(ib.columns) == 0 {
		b.WriteString(" DEFAULT VALUES")
		return b.String()
	}

	names := make([]string, len(ib.columns))
	values := make([]string, len(ib.columns))
	for i, c := range ib.columns {
		names[i] = c.name
		values[i] = ib.renderValue(c)
	}
	b.WriteString(" (" + strings.Join(names, ",") + ")")
	b.WriteString(" VALUES (" + strings.Join(values, ",") + ")")
	return b.String()
}

func (ib *InsertBuilder) renderValue(c insertColumn) string {
	if ib.defaultValues || !c.hasValue {
		return "DEFAULT"
	}
	switch v := c.value.(type) {
	case defaultValue:
		return "DEFAULT"
	case nowValue:
		return ib.dialect.CurrentTimestamp()
	case Placeholder:
		return string(v)
	}
	return ib.binder.Register(c.value)
}
