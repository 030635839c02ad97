package router

import (
	"fmt"
	"sync"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
)

// FewestEntries implements spec §4.B.3: pick the numbered shard with the
// smallest live count, ties broken by lowest index, and increment that
// shard's counter before emitting.
//
// Selecting the minimum and incrementing it must happen as one step to
// keep the balance invariant (spec §8, "the difference between any two
// shard counts is <= 1") under concurrent workers — a compare-then-
// increment built from bare atomics would need a CAS-and-retry loop
// across all N counters anyway, so a single mutex guarding a plain
// []int64 is both simpler and exactly as correct.
type FewestEntries struct {
	numShards     int
	assumeFlatDIT bool

	mu     sync.Mutex
	counts []int64
}

// NewFewestEntries validates numShards and returns a FewestEntries
// strategy with all counters at zero.
func NewFewestEntries(numShards int, assumeFlatDIT bool) (*FewestEntries, error) {
	if numShards < 2 {
		return nil, fmt.Errorf("router: fewest-entries requires numSets >= 2, got %d", numShards)
	}
	return &FewestEntries{
		numShards:     numShards,
		assumeFlatDIT: assumeFlatDIT,
		counts:        make([]int64, numShards),
	}, nil
}

func (s *FewestEntries) Name() string         { return "fewest-entries" }
func (s *FewestEntries) NumShards() int       { return s.numShards }
func (s *FewestEntries) NeedsParentMap() bool { return true }
func (s *FewestEntries) AssumeFlatDIT() bool  { return s.assumeFlatDIT }

func (s *FewestEntries) RouteOneLevel(_ dn.RDN, _ map[string][]string) (entry.ShardID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := 0
	for i := 1; i < s.numShards; i++ {
		if s.counts[i] < s.counts[best] {
			best = i
		}
	}
	s.counts[best]++
	return entry.ShardID(best + 1), nil
}

// Counts returns a snapshot of the current per-shard counts, 0-indexed
// (counts[0] is shard 1), for diagnostics and tests.
func (s *FewestEntries) Counts() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.counts))
	copy(out, s.counts)
	return out
}
