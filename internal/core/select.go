package core

import (
	"strconv"
	"strings"
)

// JoinKind is the kind of a JOIN clause.
type JoinKind int

// Join kinds.
const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	CrossJoin
)

var joinKinds = [...]string{
	InnerJoin:      "INNER",
	LeftOuterJoin:  "LEFT OUTER",
	RightOuterJoin: "RIGHT OUTER",
	FullOuterJoin:  "FULL OUTER",
	CrossJoin:      "CROSS",
}

// String returns the SQL keywords preceding JOIN.
func (k JoinKind) String() string { return joinKinds[k] }

// SortOrder is the direction of an ORDER BY column.
type SortOrder int

// Sort orders.
const (
	Asc SortOrder = iota
	Desc
)

// UnionKind selects UNION or UNION ALL.
type UnionKind int

// Union kinds.
const (
	Union UnionKind = iota
	UnionAll
)

type selectColumn struct {
	expr  string
	alias string
}

type join struct {
	kind  JoinKind
	table string
	cond  Condition
}

type orderColumn struct {
	col   string
	order SortOrder
}

// SelectBuilder builds a SELECT statement.
//
// Clauses render in this order: columns, FROM, joins, WHERE, GROUP BY,
// ORDER BY, FOR UPDATE OF, OFFSET/LIMIT.
type SelectBuilder struct {
	stmt

	columns     []selectColumn
	distinct    bool
	distinctOn  string
	where       Condition
	joins       []join
	groupBy     []string
	orderBy     []orderColumn
	lockTables  []string
	noWait      bool
	limitOffset int
	limitLength int
	combined    bool
}

func (sb *SelectBuilder) resetLimit() {
	sb.limitOffset = -1
	sb.limitLength = -1
}

// From sets the table. Setting it twice panics.
func (sb *SelectBuilder) From(table any) *SelectBuilder {
	sb.mutate()
	if sb.table != "" {
		panic("sqlforge: FROM already set to " + sb.table)
	}
	sb.table = tableName(table)
	return sb
}

// Columns appends columns; each is a name, an expression or a schema.ColumnRef.
func (sb *SelectBuilder) Columns(cols ...any) *SelectBuilder {
	sb.mutate()
	for _, c := range cols {
		sb.columns = append(sb.columns, selectColumn{expr: columnName(c)})
	}
	return sb
}

// Column appends one column rendered as `expr AS "alias"`.
func (sb *SelectBuilder) Column(expr any, alias string) *SelectBuilder {
	sb.mutate()
	sb.columns = append(sb.columns, selectColumn{expr: columnName(expr), alias: alias})
	return sb
}

// AllColumns appends "*".
func (sb *SelectBuilder) AllColumns() *SelectBuilder {
	return sb.Columns("*")
}

// CurrentTimestampColumn appends the dialect's current-timestamp expression.
func (sb *SelectBuilder) CurrentTimestampColumn() *SelectBuilder {
	return sb.Columns(sb.dialect.CurrentTimestamp())
}

// Where sets the condition. Setting it twice panics; combine conditions with And or Or.
func (sb *SelectBuilder) Where(cond Condition) *SelectBuilder {
	sb.mutate()
	if sb.where != nil {
		panic("sqlforge: WHERE already set")
	}
	sb.where = cond
	return sb
}

// Join appends "<kind> JOIN table ON cond".
func (sb *SelectBuilder) Join(kind JoinKind, table any, cond Condition) *SelectBuilder {
	sb.mutate()
	sb.joins = append(sb.joins, join{kind: kind, table: tableName(table), cond: cond})
	return sb
}

// JoinOn appends "<kind> JOIN table ON col1 = col2".
func (sb *SelectBuilder) JoinOn(kind JoinKind, table, col1, col2 any) *SelectBuilder {
	return sb.Join(kind, table, Eq(col1, columnRef(col2)))
}

// InnerJoin appends an INNER JOIN.
func (sb *SelectBuilder) InnerJoin(table any, cond Condition) *SelectBuilder {
	return sb.Join(InnerJoin, table, cond)
}

// LeftJoin appends a LEFT OUTER JOIN.
func (sb *SelectBuilder) LeftJoin(table any, cond Condition) *SelectBuilder {
	return sb.Join(LeftOuterJoin, table, cond)
}

// RightJoin appends a RIGHT OUTER JOIN.
func (sb *SelectBuilder) RightJoin(table any, cond Condition) *SelectBuilder {
	return sb.Join(RightOuterJoin, table, cond)
}

// FullJoin appends a FULL OUTER JOIN.
func (sb *SelectBuilder) FullJoin(table any, cond Condition) *SelectBuilder {
	return sb.Join(FullOuterJoin, table, cond)
}

// CrossJoin appends a CROSS JOIN.
func (sb *SelectBuilder) CrossJoin(table any, cond Condition) *SelectBuilder {
	return sb.Join(CrossJoin, table, cond)
}

// GroupBy appends GROUP BY columns.
func (sb *SelectBuilder) GroupBy(cols ...any) *SelectBuilder {
	sb.mutate()
	for _, c := range cols {
		sb.groupBy = append(sb.groupBy, columnName(c))
	}
	return sb
}

// OrderBy appends an ORDER BY column.
func (sb *SelectBuilder) OrderBy(col any, order SortOrder) *SelectBuilder {
	sb.mutate()
	sb.orderBy = append(sb.orderBy, orderColumn{col: columnName(col), order: order})
	return sb
}

// RemoveOrderBy drops every ORDER BY entry for col.
func (sb *SelectBuilder) RemoveOrderBy(col any) *SelectBuilder {
	sb.mutate()
	name := columnName(col)
	kept := sb.orderBy[:0]
	for _, o := range sb.orderBy {
		if o.col != name {
			kept = append(kept, o)
		}
	}
	sb.orderBy = kept
	return sb
}

// Distinct renders SELECT DISTINCT. It panics if DistinctOn is set.
func (sb *SelectBuilder) Distinct() *SelectBuilder {
	sb.mutate()
	if sb.distinctOn != "" {
		panic("sqlforge: DISTINCT and DISTINCT ON are mutually exclusive")
	}
	sb.distinct = true
	return sb
}

// DistinctOn renders SELECT DISTINCT ON(expr). It panics if Distinct is set.
func (sb *SelectBuilder) DistinctOn(expr any) *SelectBuilder {
	sb.mutate()
	if sb.distinct {
		panic("sqlforge: DISTINCT and DISTINCT ON are mutually exclusive")
	}
	sb.distinctOn = columnName(expr)
	return sb
}

// ForUpdateOf locks the rows of the given tables.
func (sb *SelectBuilder) ForUpdateOf(tables ...any) *SelectBuilder {
	sb.mutate()
	for _, t := range tables {
		sb.lockTables = append(sb.lockTables, tableName(t))
	}
	return sb
}

// NoWait appends NOWAIT to the row-lock clause.
func (sb *SelectBuilder) NoWait() *SelectBuilder {
	sb.mutate()
	sb.noWait = true
	return sb
}

// Limit renders "OFFSET offset LIMIT limit".
func (sb *SelectBuilder) Limit(offset, limit int) *SelectBuilder {
	sb.mutate()
	sb.limitOffset = offset
	sb.limitLength = limit
	return sb
}

// SQL renders the statement once and returns its text.
func (sb *SelectBuilder) SQL() string { return sb.assemble(sb.render) }

// Params returns the bound values in placeholder order.
func (sb *SelectBuilder) Params() []any { return sb.params(sb.render) }

// Build returns the executable query. Repeated calls return the same Query.
func (sb *SelectBuilder) Build() *Query { return sb.build(sb.render) }

// Invalidate unfreezes the statement and closes its query.
func (sb *SelectBuilder) Invalidate() *SelectBuilder {
	sb.invalidate()
	if sb.combined {
		sb.combined = false
		sb.binder = Binder{}
	}
	return sb
}

// Combine makes sb the union of left and right. right's placeholders are
// shifted past left's. sb must be empty; otherwise ErrCombineNonEmpty is
// returned and nothing changes.
func (sb *SelectBuilder) Combine(left, right *SelectBuilder, kind UnionKind) error {
	if !sb.isEmpty() {
		return ErrCombineNonEmpty
	}

	if right.combined {
		panic("sqlforge: the right operand of a union cannot itself be a union")
	}

	leftSQL := left.renderFresh()
	leftValues := left.binder.Values()

	offset := right.binder.Offset()
	right.binder.SetOffset(left.binder.Offset() + len(leftValues))
	rightSQL := right.renderFresh()
	rightValues := right.binder.Values()
	right.binder.SetOffset(offset)
	if right.assembled {
		right.renderFresh()
	}

	op := " UNION "
	if kind == UnionAll {
		op = " UNION ALL "
	}

	sb.binder = Binder{offset: left.binder.Offset()}
	sb.binder.values = append(leftValues, rightValues...)
	sb.sql = leftSQL + op + rightSQL
	sb.assembled = true
	sb.combined = true
	return nil
}

// Union returns a new builder holding "a UNION b".
func (qb *QueryBuilder) Union(a, b *SelectBuilder) *SelectBuilder {
	return qb.combine(a, b, Union)
}

// UnionAll returns a new builder holding "a UNION ALL b".
func (qb *QueryBuilder) UnionAll(a, b *SelectBuilder) *SelectBuilder {
	return qb.combine(a, b, UnionAll)
}

func (qb *QueryBuilder) combine(a, b *SelectBuilder, kind UnionKind) *SelectBuilder {
	sb := qb.Select()
	if err := sb.Combine(a, b, kind); err != nil {
		panic(err)
	}
	return sb
}

func (sb *SelectBuilder) isEmpty() bool {
	return !sb.assembled && sb.binder.Len() == 0 && sb.sql == "" &&
		sb.table == "" && len(sb.columns) == 0 && sb.where == nil && len(sb.joins) == 0 &&
		len(sb.groupBy) == 0 && len(sb.orderBy) == 0 && !sb.distinct && sb.distinctOn == "" &&
		len(sb.lockTables) == 0 && !sb.noWait && sb.limitOffset < 0 && sb.limitLength < 0
}

// renderFresh renders the current state without freezing it.
func (sb *SelectBuilder) renderFresh() string {
	if sb.combined {
		return sb.sql
	}
	sb.binder.Reset()
	return sb.render()
}

func (sb *SelectBuilder) render() string {
	var b strings.Builder
	b.WriteString("SELECT ")

	switch {
	case sb.distinct:
		b.WriteString("DISTINCT ")
	case sb.distinctOn != "":
		b.WriteString("DISTINCT ON(" + sb.distinctOn + ") ")
	}

	if len(sb.columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range sb.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.expr)
			if c.alias != "" {
				b.WriteString(" AS " + sb.dialect.QuoteIdentifier(c.alias))
			}
		}
	}

	if sb.table != "" {
		b.WriteString(" FROM " + sb.table)
	}

	for _, j := range sb.joins {
		b.WriteString(" " + j.kind.String() + " JOIN " + j.table)
		if j.cond != nil {
			if on := j.cond.render(&sb.binder, sb.dialect, false); on != "" {
				b.WriteString(" ON " + on)
			}
		}
	}

	if sb.where != nil {
		if where := sb.where.render(&sb.binder, sb.dialect, false); where != "" {
			b.WriteString(" WHERE " + where)
		}
	}

	if len(sb.groupBy) > 0 {
		b.WriteString(" GROUP BY " + strings.Join(sb.groupBy, ", "))
	}

	if len(sb.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range sb.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.col)
			if o.order == Desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}

	if len(sb.lockTables) > 0 {
		b.WriteString(" FOR UPDATE OF " + strings.Join(sb.lockTables, ", "))
		if sb.noWait {
			b.WriteString(" NOWAIT")
		}
	}

	if sb.limitOffset >= 0 && sb.limitLength >= 0 {
		b.WriteString(" OFFSET " + strconv.Itoa(sb.limitOffset) + " LIMIT " + strconv.Itoa(sb.limitLength))
	}

	return b.String()
}
