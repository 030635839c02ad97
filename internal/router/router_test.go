package router

import (
	"testing"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
	"github.com/ldaptools/dirsplit/internal/parentmap"
	"github.com/ldaptools/dirsplit/internal/schema"
)

func mustParseDN(t *testing.T, text string) dn.DN {
	t.Helper()
	return dn.Parse(text)
}

func TestHashRDNDeterministicAcrossArrivalOrder(t *testing.T) {
	strat, err := NewHashRDN(4)
	if err != nil {
		t.Fatalf("NewHashRDN: %v", err)
	}
	base := mustParseDN(t, "dc=example,dc=com")

	entries := []entry.ParsedEntry{
		{DN: mustParseDN(t, "ou=people,dc=example,dc=com")},
		{DN: mustParseDN(t, "ou=groups,dc=example,dc=com")},
		{DN: mustParseDN(t, "cn=alice,ou=people,dc=example,dc=com")},
	}

	first := map[string]entry.ShardSet{}
	for _, order := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}} {
		r := &Router{Base: base, Strategy: strat, Parents: parentmap.New()}
		got := map[string]entry.ShardSet{}
		for _, i := range order {
			pe := entries[i]
			shards, deferred := r.Route(pe)
			if deferred {
				t.Fatalf("hash-on-rdn should never defer, entry %q did", pe.DN.String())
			}
			got[pe.DN.String()] = shards
		}
		if len(first) == 0 {
			first = got
			continue
		}
		for k, v := range got {
			if !v.Equal(first[k]) {
				t.Fatalf("entry %q routed differently across arrival orders: %v vs %v", k, v, first[k])
			}
		}
	}
}

func TestHashAttributeFallsBackToRDNWhenAttributeAbsent(t *testing.T) {
	strat, err := NewHashAttribute(HashAttributeConfig{NumShards: 3, Attribute: "ou"})
	if err != nil {
		t.Fatalf("NewHashAttribute: %v", err)
	}
	rdn := mustParseDN(t, "ou=people,dc=example,dc=com").RDNs[0]
	id, err := strat.RouteOneLevel(rdn, map[string][]string{})
	if err != nil {
		t.Fatalf("RouteOneLevel: %v", err)
	}
	want := hashRDNShard(rdn, 3)
	if id != want {
		t.Fatalf("fallback shard = %v, want %v (matching hash-on-rdn)", id, want)
	}
}

func TestHashAttributeUsesAttributeValueWhenPresent(t *testing.T) {
	strat, err := NewHashAttribute(HashAttributeConfig{NumShards: 3, Attribute: "o"})
	if err != nil {
		t.Fatalf("NewHashAttribute: %v", err)
	}
	rdn := mustParseDN(t, "ou=people,dc=example,dc=com").RDNs[0]
	a, err := strat.RouteOneLevel(rdn, map[string][]string{"o": {"Acme"}})
	if err != nil {
		t.Fatalf("RouteOneLevel: %v", err)
	}
	b, err := strat.RouteOneLevel(rdn, map[string][]string{"o": {"ACME"}})
	if err != nil {
		t.Fatalf("RouteOneLevel: %v", err)
	}
	if want := entry.ShardID(fnv32a("acme")%3 + 1); a != want {
		t.Fatalf("hash-on-attribute should hash the normalized attribute value: got %v, want %v", a, want)
	}
	if a != b {
		t.Fatalf("hash-on-attribute must be case-insensitive by normalization: %v != %v", a, b)
	}
}

func TestFewestEntriesBalanceInvariant(t *testing.T) {
	strat, err := NewFewestEntries(3, false)
	if err != nil {
		t.Fatalf("NewFewestEntries: %v", err)
	}
	for i := 0; i < 100; i++ {
		if _, err := strat.RouteOneLevel(dn.RDN{}, nil); err != nil {
			t.Fatalf("RouteOneLevel: %v", err)
		}
	}
	counts := strat.Counts()
	min, max := counts[0], counts[0]
	for _, c := range counts {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	if max-min > 1 {
		t.Fatalf("balance invariant violated: counts=%v (max-min=%d)", counts, max-min)
	}
}

func TestFewestEntriesTieBreaksOnLowestIndex(t *testing.T) {
	strat, err := NewFewestEntries(2, false)
	if err != nil {
		t.Fatalf("NewFewestEntries: %v", err)
	}
	id, err := strat.RouteOneLevel(dn.RDN{}, nil)
	if err != nil {
		t.Fatalf("RouteOneLevel: %v", err)
	}
	if id != entry.ShardID(1) {
		t.Fatalf("first route with all-zero counts should pick shard 1, got %v", id)
	}
}

func TestFilterStrategyFirstMatchWins(t *testing.T) {
	strat, err := NewFilter(FilterConfig{
		FilterText: []string{"(ou=people)", "(ou=groups)"},
		Equality:   schema.NewEqualityRules(),
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	id, err := strat.RouteOneLevel(dn.RDN{}, map[string][]string{"ou": {"people"}})
	if err != nil {
		t.Fatalf("RouteOneLevel: %v", err)
	}
	if id != entry.ShardID(1) {
		t.Fatalf("expected shard 1 for first filter match, got %v", id)
	}
}

func TestFilterStrategyFallsBackToHashOnRDN(t *testing.T) {
	strat, err := NewFilter(FilterConfig{
		FilterText: []string{"(ou=people)", "(ou=groups)"},
		Equality:   schema.NewEqualityRules(),
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	rdn := mustParseDN(t, "ou=finance,dc=example,dc=com").RDNs[0]
	id, err := strat.RouteOneLevel(rdn, map[string][]string{"ou": {"finance"}})
	if err != nil {
		t.Fatalf("RouteOneLevel: %v", err)
	}
	want := hashRDNShard(rdn, 2)
	if id != want {
		t.Fatalf("unmatched entry should fall back to hash-on-rdn with N=len(filters): got %v want %v", id, want)
	}
}

func TestFilterStrategyOrderMattersWhenMultipleMatch(t *testing.T) {
	attrs := map[string][]string{"ou": {"people"}, "cn": {"anything"}}
	first, err := NewFilter(FilterConfig{
		FilterText: []string{"(ou=people)", "(cn=*)"},
		Equality:   schema.NewEqualityRules(),
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	second, err := NewFilter(FilterConfig{
		FilterText: []string{"(cn=*)", "(ou=people)"},
		Equality:   schema.NewEqualityRules(),
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	// attrs satisfies both filters, so in each ordering the filter listed
	// first is the one that matches, and it selects shard 1.
	idFirst, _ := first.RouteOneLevel(dn.RDN{}, attrs)
	idSecond, _ := second.RouteOneLevel(dn.RDN{}, attrs)
	if idFirst != entry.ShardID(1) || idSecond != entry.ShardID(1) {
		t.Fatalf("the first-listed matching filter should win in either order: got %v and %v, want shard 1 for both", idFirst, idSecond)
	}
}

func TestNewFilterRejectsFewerThanTwoFilters(t *testing.T) {
	if _, err := NewFilter(FilterConfig{FilterText: []string{"(ou=people)"}}); err == nil {
		t.Fatalf("expected error for fewer than 2 filters")
	}
}

func TestRouteOutsideOmit(t *testing.T) {
	strat, _ := NewHashRDN(2)
	base := mustParseDN(t, "dc=example,dc=com")
	r := &Router{Base: base, Outside: OutsideOmit, Strategy: strat, Parents: parentmap.New()}
	shards, deferred := r.Route(entry.ParsedEntry{DN: base})
	if deferred {
		t.Fatalf("outside entries never defer")
	}
	if len(shards) != 0 {
		t.Fatalf("OutsideOmit should produce an empty shard set, got %v", shards)
	}
}

func TestRouteOutsideAllSets(t *testing.T) {
	strat, _ := NewHashRDN(3)
	base := mustParseDN(t, "dc=example,dc=com")
	r := &Router{Base: base, Outside: OutsideAllSets, Strategy: strat, Parents: parentmap.New()}
	shards, _ := r.Route(entry.ParsedEntry{DN: base})
	if len(shards) != 3 {
		t.Fatalf("OutsideAllSets should produce all numbered shards, got %v", shards)
	}
}

func TestRouteOutsideDedicated(t *testing.T) {
	strat, _ := NewHashRDN(3)
	base := mustParseDN(t, "dc=example,dc=com")
	r := &Router{Base: base, Outside: OutsideDedicated, Strategy: strat, Parents: parentmap.New()}
	shards, _ := r.Route(entry.ParsedEntry{DN: mustParseDN(t, "dc=other,dc=net")})
	want := entry.NewShardSet(entry.ShardOutside)
	if !shards.Equal(want) {
		t.Fatalf("OutsideDedicated should route to the dedicated shard, got %v", shards)
	}
}

func TestRouteDeepDefersUntilParentCommitted(t *testing.T) {
	strat, err := NewFewestEntries(2, false)
	if err != nil {
		t.Fatalf("NewFewestEntries: %v", err)
	}
	base := mustParseDN(t, "dc=example,dc=com")
	r := &Router{Base: base, Strategy: strat, Parents: parentmap.New()}

	deep := entry.ParsedEntry{DN: mustParseDN(t, "cn=alice,ou=people,dc=example,dc=com")}
	if _, deferred := r.Route(deep); !deferred {
		t.Fatalf("deep entry should defer before its parent is committed")
	}

	parent := entry.ParsedEntry{DN: mustParseDN(t, "ou=people,dc=example,dc=com")}
	parentShards, deferred := r.Route(parent)
	if deferred {
		t.Fatalf("one-level entry should never defer")
	}

	shards, deferred := r.Route(deep)
	if deferred {
		t.Fatalf("deep entry should resolve once its parent is committed")
	}
	if !shards.Equal(parentShards) {
		t.Fatalf("deep entry should inherit its parent's shard set: got %v want %v", shards, parentShards)
	}
}

func TestRouteDeepFlatDITRecomputesWithoutParentMap(t *testing.T) {
	strat, err := NewHashRDN(4)
	if err != nil {
		t.Fatalf("NewHashRDN: %v", err)
	}
	base := mustParseDN(t, "dc=example,dc=com")
	r := &Router{Base: base, Strategy: strat, Parents: parentmap.New()}

	deep := entry.ParsedEntry{DN: mustParseDN(t, "cn=alice,ou=people,dc=example,dc=com")}
	shards, deferred := r.Route(deep)
	if deferred {
		t.Fatalf("flat-DIT strategies must never defer")
	}
	if len(shards) != 1 {
		t.Fatalf("expected exactly one shard, got %v", shards)
	}
}

func TestRoutingErrorMessage(t *testing.T) {
	err := &RoutingError{DN: "cn=alice,ou=people,dc=example,dc=com"}
	if err.Error() == "" {
		t.Fatalf("expected non-empty error message")
	}
}
