package core

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/coregx/sqlforge/internal/dialects"
	"github.com/coregx/sqlforge/internal/schema"
)

func TestCondition_Render(t *testing.T) {
	pg := dialects.GetDialect("postgres")
	users := schema.NewTable("users")
	id := users.Column("id", schema.Int, schema.PrimaryKey|schema.NotNull)
	owner := schema.NewTable("orders").Column("user_id", schema.Int, schema.ForeignKey)

	tests := []struct {
		name       string
		cond       Condition
		wantSQL    string
		wantParams []any
	}{
		{"value", Eq("a", 1), "a = :0", []any{1}},
		{"not equal", Ne("a", "x"), "a <> :0", []any{"x"}},
		{"null", Is("a", nil), "a IS NULL", nil},
		{"is not null", IsNotNull("deleted_at"), "deleted_at IS NOT NULL", nil},
		{"server time", Lt("expires_at", Now), "expires_at < now()", nil},
		{"placeholder", Ge("age", P(":min_age")), "age >= :min_age", nil},
		{"column", ColumnEq(owner, id), "orders.user_id = users.id", nil},
		{"like", Like("name", "A%"), "name LIKE :0", []any{"A%"}},
		{"single child group", And(Eq("a", 1)), "a = :0", []any{1}},
		{"empty group", And(), "", nil},
		{
			"nested groups",
			And(Eq("a", 1), Or(Eq("b", 2), Gt("c", 3))),
			"(a = :0 AND (b = :1 OR c > :2))",
			[]any{1, 2, 3},
		},
		{
			"empty children skipped",
			Or(Eq("a", 1), And(), nil, Le("b", 2)),
			"(a = :0 OR b <= :1)",
			[]any{1, 2},
		},
		{
			"group filled after it was added",
			func() Condition {
				tenant := Or()
				cond := And(Eq("a", 1), tenant)
				tenant.Add(Eq("t", 2), Eq("t", 3))
				return cond
			}(),
			"(a = :0 AND (t = :1 OR t = :2))",
			[]any{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := RenderCondition(tt.cond, pg)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCondition_CaseInsensitive(t *testing.T) {
	pg := dialects.GetDialect("postgres")

	tests := []struct {
		name       string
		cond       Condition
		wantSQL    string
		wantParams []any
	}{
		{"leaf", Eq("name", "Alice").Fold(), "LOWER(name) = :0", []any{"alice"}},
		{"placeholder", Eq("name", P(":name")).Fold(), "LOWER(name) = LOWER(:name)", nil},
		{
			"group propagates to strings only",
			And(Eq("name", "BOB"), Eq("age", 30), ColumnEq(schema.Named("a.x"), schema.Named("b.x"))).CaseInsensitive(),
			"(LOWER(name) = :0 AND age = :1 AND a.x = b.x)",
			[]any{"bob", 30},
		},
		{"unicode", Like("city", "ÖSTERSUND").Fold(), "LOWER(city) LIKE :0", []any{"östersund"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := RenderCondition(tt.cond, pg)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

func TestCondition_UUIDNormalized(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	_, params := RenderCondition(Eq("id", id), dialects.GetDialect("postgres"))
	assert.Equal(t, []any{"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}, params)
}

func TestCondition_Panics(t *testing.T) {
	name := schema.NewTable("users").Column("name", schema.Text, schema.NotNull)
	id := schema.NewTable("users").Column("id", schema.Int, schema.PrimaryKey)

	tests := []struct {
		name string
		fn   func()
	}{
		{"placeholder without colon", func() { P("name") }},
		{"placeholder too short", func() { P(":") }},
		{"placeholder starting with digit", func() { P(":1abc") }},
		{"raw placeholder checked", func() { Eq("a", Placeholder(":0")) }},
		{"IsNull on NOT NULL column", func() { IsNull(name) }},
		{"IsNotNull on NOT NULL column", func() { IsNotNull(name) }},
		{"incompatible column types", func() { ColumnEq(name, id) }},
		{"default in condition", func() { Eq("a", Default) }},
		{"unknown operator", func() { Compare("a", CompareOp(99), 1) }},
		{"bad column type", func() { Eq(42, 1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestBinder_Numbering(t *testing.T) {
	b := NewBinder(3)
	assert.Equal(t, ":3", b.Register("a"))
	assert.Equal(t, ":4", b.Register("b"))
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []any{"a", "b"}, b.Values())
	assert.Equal(t, map[string]any{":3": "a", ":4": "b"}, map[string]any(b.Binds()))

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Values())
	assert.Equal(t, ":3", b.Register("c"), "reset keeps the offset")

	b.SetOffset(10)
	assert.Equal(t, ":11", b.Register("d"))
}
