// Package cache provides caching utilities for database prepared statements.
package cache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/coregx/sqlforge/internal/adapter"
)

const (
	// DefaultStmtCacheCapacity is the default maximum number of cached prepared
	// statements per connection.
	DefaultStmtCacheCapacity = 1000
)

// StmtCache stores prepared statements keyed by connection identity and SQL text.
// Each connection has its own LRU; evicted and cleared handles are closed.
//
// A disabled cache never returns a handle and ignores Put.
type StmtCache struct {
	mu       sync.RWMutex
	capacity int
	enabled  bool
	conns    map[string]*lru.Cache[string, adapter.Stmt]

	// Metrics using atomic for lock-free access.
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewStmtCache creates a new prepared statement cache with default capacity.
func NewStmtCache() *StmtCache {
	return NewStmtCacheWithCapacity(DefaultStmtCacheCapacity)
}

// NewStmtCacheWithCapacity creates a new prepared statement cache with the
// specified per-connection capacity.
func NewStmtCacheWithCapacity(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCacheCapacity
	}
	return &StmtCache{
		capacity: capacity,
		enabled:  true,
		conns:    make(map[string]*lru.Cache[string, adapter.Stmt]),
	}
}

// Contains reports whether a handle is cached for (connID, query).
// It does not affect recency or hit statistics.
func (sc *StmtCache) Contains(connID, query string) bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if !sc.enabled {
		return false
	}
	c, ok := sc.conns[connID]
	return ok && c.Contains(query)
}

// Get retrieves a prepared statement for (connID, query).
// Accessing a statement marks it most recently used.
func (sc *StmtCache) Get(connID, query string) (adapter.Stmt, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if !sc.enabled {
		sc.misses.Add(1)
		return nil, false
	}
	c, ok := sc.conns[connID]
	if !ok {
		sc.misses.Add(1)
		return nil, false
	}
	stmt, ok := c.Get(query)
	if !ok {
		sc.misses.Add(1)
		return nil, false
	}
	sc.hits.Add(1)
	return stmt, true
}

// Put stores a prepared statement for (connID, query). A replaced handle is closed.
// If the connection's cache is full, the least recently used handle is evicted and closed.
// Put reports whether the handle was stored; callers keep ownership otherwise.
func (sc *StmtCache) Put(connID, query string, stmt adapter.Stmt) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.enabled {
		return false
	}
	c, ok := sc.conns[connID]
	if !ok {
		c = newConnCache(sc.capacity)
		sc.conns[connID] = c
	}

	if old, ok := c.Peek(query); ok && old != stmt {
		_ = old.Close() // Best effort close.
	}
	if evicted := c.Add(query, stmt); evicted {
		sc.evictions.Add(1)
	}
	return true
}

// ClearConn closes and removes every handle cached for connID.
func (sc *StmtCache) ClearConn(connID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if c, ok := sc.conns[connID]; ok {
		c.Purge()
		delete(sc.conns, connID)
	}
}

// Clear closes and removes all cached prepared statements.
func (sc *StmtCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.clearLocked()
}

func (sc *StmtCache) clearLocked() {
	for id, c := range sc.conns {
		c.Purge()
		delete(sc.conns, id)
	}
}

// SetEnabled turns caching on or off. Disabling clears all entries immediately.
func (sc *StmtCache) SetEnabled(enabled bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.enabled = enabled
	if !enabled {
		sc.clearLocked()
	}
}

// Enabled reports whether caching is on.
func (sc *StmtCache) Enabled() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.enabled
}

// Len returns the number of handles cached for connID.
func (sc *StmtCache) Len(connID string) int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	if c, ok := sc.conns[connID]; ok {
		return c.Len()
	}
	return 0
}

func newConnCache(capacity int) *lru.Cache[string, adapter.Stmt] {
	c, err := lru.NewWithEvict(capacity, func(_ string, stmt adapter.Stmt) {
		_ = stmt.Close() // Best effort close.
	})
	if err != nil {
		// Only returned for a non-positive size, which the constructor rules out.
		panic(err)
	}
	return c
}

// Stats holds cache performance metrics.
type Stats struct {
	Size        int     // Current number of cached statements across connections.
	Connections int     // Number of connections with cached statements.
	Capacity    int     // Maximum capacity per connection.
	Enabled     bool    // Whether caching is on.
	Hits        uint64  // Number of successful cache lookups.
	Misses      uint64  // Number of cache misses.
	Evictions   uint64  // Number of evicted statements.
	HitRate     float64 // Cache hit rate (hits / total requests).
}

// Stats returns cache statistics.
func (sc *StmtCache) Stats() Stats {
	sc.mu.RLock()
	size := 0
	for _, c := range sc.conns {
		size += c.Len()
	}
	conns := len(sc.conns)
	enabled := sc.enabled
	sc.mu.RUnlock()

	hits := sc.hits.Load()
	misses := sc.misses.Load()
	evictions := sc.evictions.Load()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:        size,
		Connections: conns,
		Capacity:    sc.capacity,
		Enabled:     enabled,
		Hits:        hits,
		Misses:      misses,
		Evictions:   evictions,
		HitRate:     hitRate,
	}
}
