package router

import (
	"fmt"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
	"github.com/ldaptools/dirsplit/internal/filterexpr"
	"github.com/ldaptools/dirsplit/internal/schema"
)

// Filter implements spec §4.B.4: evaluate an ordered list of filters
// against the entry, first match wins; no match falls back to
// hash-on-RDN with N = len(filters).
type Filter struct {
	filters       []filterexpr.Filter
	equality      *schema.EqualityRules
	assumeFlatDIT bool
}

// FilterConfig configures NewFilter.
type FilterConfig struct {
	// FilterText is the ordered list of raw LDAP filter strings, k >= 2,
	// all distinct by canonical form (spec §4.F — validated by
	// internal/config before this constructor is called).
	FilterText    []string
	Equality      *schema.EqualityRules
	AssumeFlatDIT bool
}

// NewFilter parses cfg.FilterText and returns a Filter strategy.
func NewFilter(cfg FilterConfig) (*Filter, error) {
	if len(cfg.FilterText) < 2 {
		return nil, fmt.Errorf("router: filter strategy requires at least 2 filters, got %d", len(cfg.FilterText))
	}
	parsed := make([]filterexpr.Filter, len(cfg.FilterText))
	for i, text := range cfg.FilterText {
		f, err := filterexpr.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("router: filter %d: %w", i+1, err)
		}
		parsed[i] = f
	}
	return &Filter{
		filters:       parsed,
		equality:      cfg.Equality,
		assumeFlatDIT: cfg.AssumeFlatDIT,
	}, nil
}

func (s *Filter) Name() string         { return "filter" }
func (s *Filter) NumShards() int       { return len(s.filters) }
func (s *Filter) NeedsParentMap() bool { return true }
func (s *Filter) AssumeFlatDIT() bool  { return s.assumeFlatDIT }

func (s *Filter) RouteOneLevel(rdn dn.RDN, attrs map[string][]string) (entry.ShardID, error) {
	for i, f := range s.filters {
		if f.Matches(attrs, s.equality) {
			return entry.ShardID(i + 1), nil
		}
	}
	return hashRDNShard(rdn, len(s.filters)), nil
}
