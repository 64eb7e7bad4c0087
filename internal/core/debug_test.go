//go:build sqlforge_debug

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Run with: go test -tags sqlforge_debug ./internal/core/

func TestCheckPlaceholders_Builders(t *testing.T) {
	qb := NewQueryBuilder("postgres")

	assert.NotPanics(t, func() {
		_ = qb.Select("id").From("t").
			Where(And(Eq("a", 1), Eq("a", 1), Eq("b", P(":name")), Or())).
			Limit(0, 10).
			SQL()
		_ = qb.Insert("t").Value("a", 1).Value("b", Now).Column("c").SQL()
		_ = qb.Update("t").Set("a", 1).Set("b", Default).Where(Eq("id", 2)).SQL()
		_ = qb.Delete("t").Where(Eq("name", "x").Fold()).SQL()
		_ = qb.Union(qb.Select().From("a").Where(Eq("x", 1)), qb.Select().From("b").Where(Eq("y", 2))).SQL()
	})
}

func TestCheckPlaceholders_Mismatch(t *testing.T) {
	b := NewBinder(0)
	b.Register(1)

	assert.NotPanics(t, func() { checkPlaceholders("SELECT :0, :0", b) })
	assert.Panics(t, func() { checkPlaceholders("SELECT 1", b) })
	assert.Panics(t, func() { checkPlaceholders("SELECT :0, :1", b) })
}
