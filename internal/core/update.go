package core

import (
	"strings"

	"github.com/coregx/sqlforge/internal/schema"
)

type columnValue struct {
	name  string
	value any
}

// UpdateBuilder builds an UPDATE statement.
type UpdateBuilder struct {
	stmt

	columns []columnValue
	where   Condition
	exact   bool
}

// Set assigns v to col. v may be Now, Default, a Placeholder or a
// schema.ColumnRef; anything else, nil included, is bound.
func (ub *UpdateBuilder) Set(col, v any) *UpdateBuilder {
	ub.mutate()
	if p, ok := v.(Placeholder); ok {
		validatePlaceholder(string(p))
	}
	ub.columns = append(ub.columns, columnValue{name: targetName(col), value: v})
	return ub
}

// Only excludes tables inheriting from the target table.
func (ub *UpdateBuilder) Only(exact bool) *UpdateBuilder {
	ub.mutate()
	ub.exact = exact
	return ub
}

// Where sets the condition. Setting it twice panics.
func (ub *UpdateBuilder) Where(cond Condition) *UpdateBuilder {
	ub.mutate()
	if ub.where != nil {
		panic("sqlforge: WHERE already set")
	}
	ub.where = cond
	return ub
}

// ColumnNames returns the assigned columns in order.
func (ub *UpdateBuilder) ColumnNames() []string {
	names := make([]string, len(ub.columns))
	for i, c := range ub.columns {
		names[i] = c.name
	}
	return names
}

// SQL renders the statement once and returns its text.
func (ub *UpdateBuilder) SQL() string { return ub.assemble(ub.render) }

// Params returns the bound values in placeholder order.
func (ub *UpdateBuilder) Params() []any { return ub.params(ub.render) }

// Build returns the executable query. Repeated calls return the same Query.
func (ub *UpdateBuilder) Build() *Query { return ub.build(ub.render) }

// Invalidate unfreezes the statement and closes its query.
func (ub *UpdateBuilder) Invalidate() *UpdateBuilder {
	ub.invalidate()
	return ub
}

func (ub *UpdateBuilder) render() string {
	if len(ub.columns) == 0 {
		panic("sqlforge: UPDATE " + ub.table + " has no columns to set")
	}

	var b strings.Builder
	b.WriteString("UPDATE " + ub.only(ub.exact) + ub.table + " SET ")
	for i, c := range ub.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.name + " = " + ub.renderValue(c.value))
	}

	if ub.where != nil {
		if where := ub.where.render(&ub.binder, ub.dialect, false); where != "" {
			b.WriteString(" WHERE " + where)
		}
	}
	return b.String()
}

func (ub *UpdateBuilder) renderValue(v any) string {
	switch val := v.(type) {
	case defaultValue:
		return "DEFAULT"
	case nowValue:
		return ub.dialect.CurrentTimestamp()
	case Placeholder:
		return string(val)
	case schema.ColumnRef:
		return val.QualifiedName()
	}
	return ub.binder.Register(v)
}
