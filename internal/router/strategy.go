// Package router implements the four entry-routing strategies and the
// outer routing decision they share (spec §4.B): whether an entry is
// outside the split base, exactly one level below it, or a deeper
// descendant that either recomputes (flat DIT) or inherits from the
// parent map.
//
// The Strategy interface generalizes streamz/partition.go's
// PartitionStrategy[T] — "pick one of N partitions for a value" — into
// "pick one shard for an RDN plus attribute set, or fall through to the
// caller's fallback," because unlike a stream partitioner this router
// must also know whether it needs the parent map and whether it assumes
// a flat DIT, both of which vary per strategy.
package router

import (
	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
	"github.com/ldaptools/dirsplit/internal/parentmap"
)

// Strategy computes a shard for an entry exactly one level below the
// split base. The outer Router drives the depth logic (spec §4.B steps
// 1–3); a Strategy only ever sees the one-level case.
type Strategy interface {
	// Name identifies the strategy for logging and metadata.
	Name() string
	// NumShards is the configured number of numbered shards (N).
	NumShards() int
	// NeedsParentMap reports whether deeper (depth >= 2) entries must
	// consult the parent map rather than recompute directly. Hash-on-RDN
	// never needs it: a descendant can always recompute its
	// ancestor-one-below-base RDN from its own DN (spec §4.B.1).
	NeedsParentMap() bool
	// AssumeFlatDIT reports whether deeper entries should recompute
	// against their one-level-below-base ancestor instead of consulting
	// the parent map, even when NeedsParentMap is true in principle.
	AssumeFlatDIT() bool
	// RouteOneLevel computes the shard for an entry whose RDN directly
	// below the split base is rdn, with attrs as its (or, in the flat-DIT
	// fallback, its descendant's own) attributes.
	RouteOneLevel(rdn dn.RDN, attrs map[string][]string) (entry.ShardID, error)
}

// OutsideMode selects how entries at or above the split base are
// handled (spec §3 invariant 3, §4.B step 1).
type OutsideMode int

const (
	// OutsideOmit excludes outside entries (empty shard set).
	OutsideOmit OutsideMode = iota
	// OutsideAllSets routes outside entries to every numbered shard.
	OutsideAllSets
	// OutsideDedicated routes outside entries to the reserved
	// outside-split-base-dn shard.
	OutsideDedicated
)

// RoutingError reports that a descendant below the split base had no
// known parent in the parent map and the strategy does not assume a flat
// DIT — spec §4.D/§7's "entry has no parent in a previously-seen shard."
type RoutingError struct {
	DN string
}

func (e *RoutingError) Error() string {
	return "routing: entry has no parent in a previously-seen shard: " + e.DN
}

// Router implements the shared outer decision of spec §4.B, delegating
// the one-level computation to a Strategy and the deeper-entry lookup to
// a parentmap.Map.
type Router struct {
	Base     dn.DN
	Outside  OutsideMode
	Strategy Strategy
	Parents  *parentmap.Map
}

// Route computes the shard set for pe. The second return is true when
// the entry is a descendant whose parent has not yet been committed to
// the parent map — the caller (internal/translate) emits a deferred
// TranslatedEntry, and internal/dispatch retries once at consumption
// time, by which point the source-order-preserving pipeline guarantees
// that a parent appearing earlier in the source has already had its own
// decision committed (spec §5).
func (r *Router) Route(pe entry.ParsedEntry) (entry.ShardSet, bool) {
	depth, ok := dn.Depth(pe.DN, r.Base)
	if !ok || depth == 0 {
		return r.outsideShards(), false
	}

	if depth == 1 {
		return r.routeOneLevel(pe), false
	}

	return r.routeDeep(pe)
}

func (r *Router) routeOneLevel(pe entry.ParsedEntry) entry.ShardSet {
	rdn, _ := dn.RelativeComponent(pe.DN, r.Base)
	id, _ := r.Strategy.RouteOneLevel(rdn, pe.Attrs)
	shards := entry.NewShardSet(id)

	if r.Strategy.NeedsParentMap() {
		key := dn.Canonical(pe.DN)
		r.Parents.LoadOrStore(key, func() (entry.ShardSet, bool) { return shards, true })
	}
	return shards
}

func (r *Router) routeDeep(pe entry.ParsedEntry) (entry.ShardSet, bool) {
	if !r.Strategy.NeedsParentMap() || r.Strategy.AssumeFlatDIT() {
		anc, _ := dn.AncestorOneBelowBase(pe.DN, r.Base)
		ancRDN, _ := dn.RelativeComponent(anc, r.Base)
		id, _ := r.Strategy.RouteOneLevel(ancRDN, pe.Attrs)
		return entry.NewShardSet(id), false
	}

	parentDN, _ := dn.Parent(pe.DN)
	parentKey := dn.Canonical(parentDN)
	shards, found := r.Parents.Load(parentKey)
	if !found {
		return nil, true
	}

	// Write the inheritance through for this DN too, so further
	// descendants can resolve against it directly.
	ownKey := dn.Canonical(pe.DN)
	r.Parents.LoadOrStore(ownKey, func() (entry.ShardSet, bool) { return shards, true })
	return shards, false
}

func (r *Router) outsideShards() entry.ShardSet {
	switch r.Outside {
	case OutsideAllSets:
		ids := make([]entry.ShardID, r.Strategy.NumShards())
		for i := range ids {
			ids[i] = entry.ShardID(i + 1)
		}
		return entry.NewShardSet(ids...)
	case OutsideDedicated:
		return entry.NewShardSet(entry.ShardOutside)
	default:
		return entry.ShardSet{}
	}
}
