package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/coregx/sqlforge"
	_ "modernc.org/sqlite"
)

func openItems(b *testing.B, opts ...sqlforge.Option) *sqlforge.DB {
	b.Helper()
	db, err := sqlforge.Open("sqlite", ":memory:", opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })

	if err := db.BatchExec(context.Background(), `
		CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price INTEGER);
		INSERT INTO items (id, name, price) VALUES (1, 'test', 10)`); err != nil {
		b.Fatal(err)
	}
	return db
}

func BenchmarkRender(b *testing.B) {
	qb := sqlforge.NewQueryBuilder("postgres")

	b.Run("Select", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = qb.Select("id", "name").From("items").
				Where(sqlforge.And(sqlforge.Eq("id", i), sqlforge.Gt("price", 5))).
				OrderBy("id", sqlforge.Desc).
				Limit(0, 10).
				SQL()
		}
	})

	b.Run("Update", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = qb.Update("items").Set("name", "x").Set("price", i).
				Where(sqlforge.Eq("id", sqlforge.P(":id"))).
				SQL()
		}
	})

	b.Run("DeepCondition", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			cond := sqlforge.And()
			for j := range 16 {
				cond.Add(sqlforge.Or(sqlforge.Eq(fmt.Sprintf("c%d", j), j), sqlforge.IsNull(fmt.Sprintf("c%d", j))))
			}
			_ = qb.Delete("items").Where(cond).SQL()
		}
	})
}

func BenchmarkSelectQuery(b *testing.B) {
	scan := func(b *testing.B, q *sqlforge.Query) {
		var id int
		var name string
		if err := q.Row(&id, &name); err != nil {
			b.Fatal(err)
		}
	}

	b.Run("CachedStatement", func(b *testing.B) {
		db := openItems(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			q := db.Builder().Select("id", "name").From("items").Where(sqlforge.Eq("id", 1)).Build()
			scan(b, q)
			_ = q.Close()
		}
	})

	b.Run("CacheDisabled", func(b *testing.B) {
		db := openItems(b)
		db.SetStmtCacheEnabled(false)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			q := db.Builder().Select("id", "name").From("items").Where(sqlforge.Eq("id", 1)).Build()
			scan(b, q)
			_ = q.Close()
		}
	})

	b.Run("ReboundQuery", func(b *testing.B) {
		db := openItems(b)
		q := db.Builder().Select("id", "name").From("items").Where(sqlforge.Eq("id", sqlforge.P(":id"))).Build()
		defer q.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			q.Bind(":id", 1)
			scan(b, q)
		}
	})
}
