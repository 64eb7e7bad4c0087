package core

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/coregx/sqlforge/internal/dialects"
	"github.com/coregx/sqlforge/internal/schema"
)

// CompareOp is a comparison operator of a condition leaf.
type CompareOp int

// Comparison operators.
const (
	OpEq CompareOp = iota
	OpNe
	OpIs
	OpIsNot
	OpLt
	OpLe
	OpGt
	OpGe
	OpLike
)

var compareOps = [...]string{
	OpEq:    " = ",
	OpNe:    " <> ",
	OpIs:    " IS ",
	OpIsNot: " IS NOT ",
	OpLt:    " < ",
	OpLe:    " <= ",
	OpGt:    " > ",
	OpGe:    " >= ",
	OpLike:  " LIKE ",
}

func (op CompareOp) valid() bool { return op >= 0 && int(op) < len(compareOps) }

// String returns the operator with surrounding spaces, as rendered.
func (op CompareOp) String() string {
	if !op.valid() {
		panic(fmt.Sprintf("sqlforge: unknown comparison operator %d", int(op)))
	}
	return compareOps[op]
}

// LogicOp combines the children of a condition group.
type LogicOp int

// Logic operators.
const (
	LogicAnd LogicOp = iota
	LogicOr
)

// String returns the operator with surrounding spaces, as rendered.
func (op LogicOp) String() string {
	if op == LogicOr {
		return " OR "
	}
	return " AND "
}

// Condition is a node of a WHERE or JOIN condition tree: a *Leaf or a *Group.
type Condition interface {
	// render appends bound values to b and returns the SQL fragment.
	// fold requests case-insensitive comparison of string values.
	render(b *Binder, d dialects.Dialect, fold bool) string
	empty() bool
}

// Leaf compares a column with a value, another column, a placeholder,
// NULL or the server time.
type Leaf struct {
	left  string
	op    CompareOp
	right any
	fold  bool
}

// Compare creates a leaf. left is a column name or schema.ColumnRef. right is a
// value, a schema.ColumnRef, a Placeholder, nil (NULL) or Now.
//
// Comparing two typed columns of different SQL types panics.
func Compare(left any, op CompareOp, right any) *Leaf {
	if !op.valid() {
		panic(fmt.Sprintf("sqlforge: unknown comparison operator %d", int(op)))
	}
	switch r := right.(type) {
	case Placeholder:
		validatePlaceholder(string(r))
	case defaultValue:
		panic("sqlforge: DEFAULT cannot be used in a condition")
	case schema.ColumnRef:
		if l, ok := left.(schema.ColumnRef); ok && !schema.Comparable(l, r) {
			panic(fmt.Sprintf("sqlforge: cannot compare %s (%s) with %s (%s)",
				l.QualifiedName(), l.SQLType(), r.QualifiedName(), r.SQLType()))
		}
	}
	return &Leaf{left: columnName(left), op: op, right: right}
}

// Eq creates "left = right".
func Eq(left, right any) *Leaf { return Compare(left, OpEq, right) }

// Ne creates "left <> right".
func Ne(left, right any) *Leaf { return Compare(left, OpNe, right) }

// Is creates "left IS right".
func Is(left, right any) *Leaf { return Compare(left, OpIs, right) }

// IsNot creates "left IS NOT right".
func IsNot(left, right any) *Leaf { return Compare(left, OpIsNot, right) }

// Lt creates "left < right".
func Lt(left, right any) *Leaf { return Compare(left, OpLt, right) }

// Le creates "left <= right".
func Le(left, right any) *Leaf { return Compare(left, OpLe, right) }

// Gt creates "left > right".
func Gt(left, right any) *Leaf { return Compare(left, OpGt, right) }

// Ge creates "left >= right".
func Ge(left, right any) *Leaf { return Compare(left, OpGe, right) }

// Like creates "left LIKE right".
func Like(left, right any) *Leaf { return Compare(left, OpLike, right) }

// IsNull creates "col IS NULL". It panics for a NOT NULL column.
func IsNull(col any) *Leaf {
	rejectNotNull(col, "IsNull")
	return Compare(col, OpIs, nil)
}

// IsNotNull creates "col IS NOT NULL". It panics for a NOT NULL column.
func IsNotNull(col any) *Leaf {
	rejectNotNull(col, "IsNotNull")
	return Compare(col, OpIsNot, nil)
}

// ColumnEq creates "a = b" for two columns.
func ColumnEq(a, b schema.ColumnRef) *Leaf { return Compare(a, OpEq, b) }

func rejectNotNull(col any, fn string) {
	if c, ok := col.(schema.ColumnRef); ok && c.Constraints().Has(schema.NotNull) {
		panic(fmt.Sprintf("sqlforge: %s on NOT NULL column %s", fn, c.QualifiedName()))
	}
}

// Fold makes the comparison case-insensitive and returns l.
func (l *Leaf) Fold() *Leaf {
	l.fold = true
	return l
}

func (l *Leaf) empty() bool { return false }

func (l *Leaf) render(b *Binder, d dialects.Dialect, fold bool) string {
	fold = fold || l.fold

	var sb strings.Builder
	if fold && foldable(l.right) {
		sb.WriteString("LOWER(" + l.left + ")")
	} else {
		sb.WriteString(l.left)
	}
	sb.WriteString(l.op.String())

	switch r := l.right.(type) {
	case nil:
		sb.WriteString("NULL")
	case nowValue:
		sb.WriteString(d.CurrentTimestamp())
	case Placeholder:
		if fold {
			sb.WriteString("LOWER(" + string(r) + ")")
		} else {
			sb.WriteString(string(r))
		}
	case schema.ColumnRef:
		sb.WriteString(r.QualifiedName())
	case string:
		if fold {
			r = cases.Lower(language.Und).String(r)
		}
		sb.WriteString(b.Register(r))
	default:
		sb.WriteString(b.Register(r))
	}
	return sb.String()
}

func foldable(v any) bool {
	switch v.(type) {
	case string, Placeholder:
		return true
	}
	return false
}

// Group combines conditions with AND or OR.
type Group struct {
	op       LogicOp
	children []Condition
	fold     bool
}

// And creates a group joining conds with AND. Nil conditions are dropped and
// groups that are still empty at render time are skipped.
func And(conds ...Condition) *Group {
	return (&Group{op: LogicAnd}).Add(conds...)
}

// Or creates a group joining conds with OR. Nil conditions are dropped and
// groups that are still empty at render time are skipped.
func Or(conds ...Condition) *Group {
	return (&Group{op: LogicOr}).Add(conds...)
}

// Add appends conditions and returns g. An empty group may be added and
// filled later.
func (g *Group) Add(conds ...Condition) *Group {
	for _, c := range conds {
		if c == nil || isNilCondition(c) {
			continue
		}
		g.children = append(g.children, c)
	}
	return g
}

// CaseInsensitive makes every string comparison below g case-insensitive and returns g.
func (g *Group) CaseInsensitive() *Group {
	g.fold = true
	return g
}

// Len returns the number of children.
func (g *Group) Len() int { return len(g.children) }

func (g *Group) empty() bool {
	for _, c := range g.children {
		if !c.empty() {
			return false
		}
	}
	return true
}

func (g *Group) render(b *Binder, d dialects.Dialect, fold bool) string {
	fold = fold || g.fold

	parts := make([]string, 0, len(g.children))
	for _, c := range g.children {
		if c.empty() {
			continue
		}
		parts = append(parts, c.render(b, d, fold))
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, g.op.String()) + ")"
}

func isNilCondition(c Condition) bool {
	switch v := c.(type) {
	case *Leaf:
		return v == nil
	case *Group:
		return v == nil
	}
	return false
}

// RenderCondition renders c with a fresh binder. It is meant for tests and
// for callers embedding a condition in hand-written SQL.
func RenderCondition(c Condition, d dialects.Dialect) (string, []any) {
	b := NewBinder(0)
	return c.render(b, d, false), b.Values()
}
