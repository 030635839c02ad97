// Package parentmap implements the thread-safe DN-to-shard-set cache the
// hash-on-attribute, fewest-entries, and filter strategies consult for
// descendants below the one-level-below-base frontier (spec §4.C).
//
// It is grounded on streamz's Dedupe processor: a single mutex guarding a
// plain map is enough concurrency control for this access pattern, and a
// single lock held across the read-check and the write-back is what makes
// inserts idempotent and keeps readers from ever observing a half-built
// set. Unlike Dedupe, entries here are never evicted — the data model
// requires the map to grow for the life of the run (spec §3, §9).
package parentmap

import (
	"sync"

	"github.com/ldaptools/dirsplit/internal/entry"
)

// Map is a concurrency-safe DN (canonical string) -> shard-set cache.
type Map struct {
	mu   sync.Mutex
	seen map[string]entry.ShardSet
}

// New returns an empty parent map.
func New() *Map {
	return &Map{seen: make(map[string]entry.ShardSet)}
}

// Load returns the shard set previously stored for key, if any.
func (m *Map) Load(key string) (entry.ShardSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seen[key]
	return s, ok
}

// LoadOrStore returns the shard set already stored for key, if present.
// Otherwise it invokes compute while still holding the lock and, if
// compute reports success, stores and returns its result. Holding the
// lock across compute guarantees at-most-one insert per key: a second
// concurrent caller for the same key blocks until the first caller's
// value is committed, then observes that committed value instead of
// racing to compute its own.
//
// compute must be cheap and must not itself touch the Map (re-entrant
// locking would deadlock).
func (m *Map) LoadOrStore(key string, compute func() (entry.ShardSet, bool)) (entry.ShardSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.seen[key]; ok {
		return s, true
	}
	s, ok := compute()
	if !ok {
		return entry.ShardSet{}, false
	}
	m.seen[key] = s
	return s, true
}

// Len reports the number of DNs currently cached, for diagnostics.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
