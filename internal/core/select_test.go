package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlforge/internal/schema"
)

func TestSelect_Render(t *testing.T) {
	tests := []struct {
		name       string
		dialect    string
		build      func(qb *QueryBuilder) *SelectBuilder
		wantSQL    string
		wantParams []any
	}{
		{
			name:    "all columns",
			dialect: "postgres",
			build:   func(qb *QueryBuilder) *SelectBuilder { return qb.Select().From("users") },
			wantSQL: "SELECT * FROM users",
		},
		{
			name:    "where order limit",
			dialect: "postgres",
			build: func(qb *QueryBuilder) *SelectBuilder {
				return qb.Select("id", "name").From("users").
					Where(And(Eq("status", "active"), Gt("age", 18))).
					OrderBy("name", Asc).OrderBy("id", Desc).
					Limit(20, 10)
			},
			wantSQL:    "SELECT id, name FROM users WHERE (status = :0 AND age > :1) ORDER BY name ASC, id DESC OFFSET 20 LIMIT 10",
			wantParams: []any{"active", 18},
		},
		{
			name:    "joins bind in render order",
			dialect: "postgres",
			build: func(qb *QueryBuilder) *SelectBuilder {
				return qb.Select("u.id").From("users u").
					InnerJoin("orders o", And(ColumnEq(schema.Named("o.user_id"), schema.Named("u.id")), Gt("o.total", 100))).
					JoinOn(LeftOuterJoin, "payments p", "p.order_id", "o.id").
					Where(Eq("u.region", "eu"))
			},
			wantSQL: "SELECT u.id FROM users u" +
				" INNER JOIN orders o ON (o.user_id = u.id AND o.total > :0)" +
				" LEFT OUTER JOIN payments p ON p.order_id = o.id" +
				" WHERE u.region = :1",
			wantParams: []any{100, "eu"},
		},
		{
			name:    "alias quoted per dialect",
			dialect: "mysql",
			build: func(qb *QueryBuilder) *SelectBuilder {
				return qb.Select().Column("count(*)", "total").From("users").GroupBy("region", "city")
			},
			wantSQL: "SELECT count(*) AS `total` FROM users GROUP BY region, city",
		},
		{
			name:    "distinct on",
			dialect: "postgres",
			build: func(qb *QueryBuilder) *SelectBuilder {
				return qb.Select("user_id", "created_at").DistinctOn("user_id").From("logins")
			},
			wantSQL: "SELECT DISTINCT ON(user_id) user_id, created_at FROM logins",
		},
		{
			name:    "distinct",
			dialect: "postgres",
			build:   func(qb *QueryBuilder) *SelectBuilder { return qb.Select("city").Distinct().From("users") },
			wantSQL: "SELECT DISTINCT city FROM users",
		},
		{
			name:    "row lock",
			dialect: "postgres",
			build: func(qb *QueryBuilder) *SelectBuilder {
				return qb.Select().From("jobs").Where(Eq("state", P(":state"))).ForUpdateOf("jobs").NoWait().Limit(0, 1)
			},
			wantSQL: "SELECT * FROM jobs WHERE state = :state FOR UPDATE OF jobs NOWAIT OFFSET 0 LIMIT 1",
		},
		{
			name:    "server time column",
			dialect: "sqlite",
			build:   func(qb *QueryBuilder) *SelectBuilder { return qb.Select().CurrentTimestampColumn() },
			wantSQL: "SELECT CURRENT_TIMESTAMP",
		},
		{
			name:    "empty where is omitted",
			dialect: "postgres",
			build:   func(qb *QueryBuilder) *SelectBuilder { return qb.Select().From("users").Where(Or()) },
			wantSQL: "SELECT * FROM users",
		},
		{
			name:    "remove order by",
			dialect: "postgres",
			build: func(qb *QueryBuilder) *SelectBuilder {
				return qb.Select().From("users").OrderBy("name", Asc).OrderBy("id", Asc).RemoveOrderBy("name")
			},
			wantSQL: "SELECT * FROM users ORDER BY id ASC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := tt.build(NewQueryBuilder(tt.dialect))
			assert.Equal(t, tt.wantSQL, sb.SQL())
			assert.Equal(t, tt.wantParams, sb.Params())
		})
	}
}

func TestSelect_Idempotent(t *testing.T) {
	sb := NewQueryBuilder("postgres").Select().From("users").Where(Eq("id", 7))

	first := sb.SQL()
	assert.Equal(t, first, sb.SQL())
	assert.Equal(t, []any{7}, sb.Params())
	assert.Equal(t, []any{7}, sb.Params(), "rendering twice must not register values twice")

	q := sb.Build()
	assert.Same(t, q, sb.Build())
	assert.Equal(t, first, q.SQL())
	assert.Equal(t, map[string]any{":0": 7}, map[string]any(q.Binds()))
}

func TestSelect_FrozenUntilInvalidate(t *testing.T) {
	sb := NewQueryBuilder("postgres").Select().From("users")
	_ = sb.SQL()

	assert.PanicsWithValue(t, "sqlforge: statement already assembled, call Invalidate first", func() {
		sb.Where(Eq("id", 1))
	})

	q := sb.Build()
	sb.Invalidate().Where(Eq("id", 1))
	assert.Equal(t, "SELECT * FROM users WHERE id = :0", sb.SQL())
	assert.NotSame(t, q, sb.Build())
	assert.ErrorIs(t, executeErr(q), ErrNotAttached)
}

func executeErr(q *Query) error {
	_, err := q.Execute()
	return err
}

func TestSelect_Panics(t *testing.T) {
	qb := NewQueryBuilder("postgres")

	tests := []struct {
		name string
		fn   func()
	}{
		{"where twice", func() { qb.Select().Where(Eq("a", 1)).Where(Eq("b", 2)) }},
		{"from twice", func() { qb.Select().From("a").From("b") }},
		{"distinct then distinct on", func() { qb.Select().Distinct().DistinctOn("a") }},
		{"distinct on then distinct", func() { qb.Select().DistinctOn("a").Distinct() }},
		{"unknown dialect", func() { NewQueryBuilder("oracle") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestSelect_Union(t *testing.T) {
	qb := NewQueryBuilder("postgres")
	left := qb.Select("id").From("admins").Where(Eq("active", true))
	right := qb.Select("id").From("users").Where(And(Eq("role", "owner"), Gt("age", 21)))

	u := qb.Union(left, right)
	assert.Equal(t,
		"SELECT id FROM admins WHERE active = :0 UNION SELECT id FROM users WHERE (role = :1 AND age > :2)",
		u.SQL())
	assert.Equal(t, []any{true, "owner", 21}, u.Params())

	q := u.Build()
	assert.Equal(t, map[string]any{":0": true, ":1": "owner", ":2": 21}, map[string]any(q.Binds()))

	// The operands keep their own numbering.
	assert.Equal(t, "SELECT id FROM users WHERE (role = :0 AND age > :1)", right.SQL())

	all := qb.UnionAll(left, right)
	assert.Contains(t, all.SQL(), " UNION ALL ")
}

func TestSelect_UnionKeepsLeftOffset(t *testing.T) {
	qb := NewQueryBuilder("postgres")
	left := qb.Select("id").From("a").Where(Eq("x", 1))
	left.binder.SetOffset(2)
	right := qb.Select("id").From("b").Where(Eq("y", 2))

	u := qb.Union(left, right)
	assert.Equal(t, "SELECT id FROM a WHERE x = :2 UNION SELECT id FROM b WHERE y = :3", u.SQL())
	assert.Equal(t, map[string]any{":2": 1, ":3": 2}, map[string]any(u.Build().Binds()))
}

func TestSelect_CombineIntoNonEmpty(t *testing.T) {
	qb := NewQueryBuilder("postgres")
	target := qb.Select("id").From("t")
	err := target.Combine(qb.Select().From("a"), qb.Select().From("b"), Union)
	require.ErrorIs(t, err, ErrCombineNonEmpty)
	assert.Equal(t, "SELECT id FROM t", target.SQL(), "target must be untouched")

	configured := []struct {
		name string
		sb   *SelectBuilder
	}{
		{"group by", qb.Select().GroupBy("a")},
		{"order by", qb.Select().OrderBy("a", Desc)},
		{"distinct", qb.Select().Distinct()},
		{"distinct on", qb.Select().DistinctOn("a")},
		{"row lock", qb.Select().ForUpdateOf("a")},
		{"nowait", qb.Select().NoWait()},
		{"limit", qb.Select().Limit(0, 10)},
	}
	for _, tt := range configured {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sb.Combine(qb.Select().From("a"), qb.Select().From("b"), Union)
			assert.ErrorIs(t, err, ErrCombineNonEmpty)
		})
	}
}

func TestSelect_CombineNested(t *testing.T) {
	qb := NewQueryBuilder("postgres")
	inner := qb.Union(qb.Select().From("a"), qb.Select().From("b"))

	// A union can be the left operand but not the right one.
	outer := qb.Union(inner, qb.Select().From("c"))
	assert.Equal(t, "SELECT * FROM a UNION SELECT * FROM b UNION SELECT * FROM c", outer.SQL())

	assert.Panics(t, func() { qb.Union(qb.Select().From("c"), inner) })
}
