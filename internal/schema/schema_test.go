package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Column(t *testing.T) {
	users := NewTable("users")
	id := users.Column("id", UUID, PrimaryKey|NotNull)

	assert.Equal(t, "users", users.Name())
	assert.Equal(t, "users.id", id.QualifiedName())
	assert.Equal(t, "id", id.ColumnName())
	assert.Equal(t, UUID, id.SQLType())
	assert.Equal(t, -1, id.MaxSize())
	assert.True(t, id.Constraints().Has(NotNull))
	assert.True(t, id.Constraints().Has(PrimaryKey))
	assert.False(t, id.Constraints().Has(Unique))
}

func TestColumn_Modifiers(t *testing.T) {
	c := NewColumn("orders.customer", Int, NotNull).
		WithMaxSize(16).
		WithReference("customers.id")

	assert.Equal(t, "customer", c.ColumnName())
	assert.Equal(t, "lower(a.b)", Named("lower(a.b)").ColumnName())
	assert.Equal(t, 16, c.MaxSize())
	assert.Equal(t, "customers.id", c.References())
	assert.True(t, c.Constraints().Has(ForeignKey|NotNull))
	assert.Equal(t, "NOT NULL|FOREIGN KEY", c.Constraints().String())
}

func TestComparable(t *testing.T) {
	tests := []struct {
		name string
		a, b ColumnRef
		want bool
	}{
		{"same type", NewColumn("a", Int, 0), NewColumn("b", Int, 0), true},
		{"different type", NewColumn("a", Int, 0), NewColumn("b", Text, 0), false},
		{"untyped left", Named("a"), NewColumn("b", Text, 0), true},
		{"untyped right", NewColumn("a", Bool, 0), Named("b"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Comparable(tt.a, tt.b))
		})
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "timestamp", Timestamp.String())
	assert.Equal(t, "unknown", Type(99).String())
}
