package cache

import (
	"fmt"
	"testing"
)

func fillConn(sc *StmtCache, connID string, n int) []string {
	queries := make([]string, n)
	for i := range queries {
		queries[i] = fmt.Sprintf("SELECT * FROM t WHERE id = :%d", i)
		sc.Put(connID, queries[i], newStmt(queries[i]))
	}
	return queries
}

func BenchmarkStmtCache_Lookup(b *testing.B) {
	sc := NewStmtCache()
	queries := fillConn(sc, "c1", 100)

	b.Run("Hit", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = sc.Get("c1", queries[i%len(queries)])
		}
	})

	b.Run("MissUnknownConn", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = sc.Get("c2", queries[0])
		}
	})

	b.Run("Contains", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = sc.Contains("c1", queries[i%len(queries)])
		}
	})
}

// BenchmarkStmtCache_Churn cycles ten times more statements than fit.
func BenchmarkStmtCache_Churn(b *testing.B) {
	sc := NewStmtCacheWithCapacity(100)
	queries := make([]string, 1000)
	for i := range queries {
		queries[i] = fmt.Sprintf("UPDATE t SET v = :0 WHERE id = %d", i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q := queries[i%len(queries)]
		if _, ok := sc.Get("c1", q); !ok {
			sc.Put("c1", q, newStmt(q))
		}
	}
}

// BenchmarkStmtCache_ClearConn measures dropping one connection's statements
// while others stay cached, as recovery does.
func BenchmarkStmtCache_ClearConn(b *testing.B) {
	sc := NewStmtCache()
	fillConn(sc, "other", 100)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		fillConn(sc, "c1", 100)
		b.StartTimer()
		sc.ClearConn("c1")
	}
}

func BenchmarkStmtCache_ParallelConns(b *testing.B) {
	sc := NewStmtCache()
	conns := []string{"c1", "c2", "c3", "c4"}
	var queries []string
	for _, c := range conns {
		queries = fillConn(sc, c, 100)
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = sc.Get(conns[i%len(conns)], queries[i%len(queries)])
			i++
		}
	})
}
