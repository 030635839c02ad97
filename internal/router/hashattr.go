package router

import (
	"fmt"
	"strings"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
)

// valueSeparator is the reserved byte joining multiple attribute values
// before hashing (spec §4.B.2): a NUL byte never appears in normalized
// LDIF text, so it cannot accidentally merge two distinct values into
// one that collides with a different pair.
const valueSeparator = "\x00"

// HashAttribute implements spec §4.B.2: hash the entry's values of a
// configured attribute, falling back to hash-on-RDN when the attribute
// is absent.
type HashAttribute struct {
	numShards     int
	attribute     string
	useAllValues  bool
	assumeFlatDIT bool
}

// HashAttributeConfig configures NewHashAttribute.
type HashAttributeConfig struct {
	NumShards     int
	Attribute     string
	UseAllValues  bool
	AssumeFlatDIT bool
}

// NewHashAttribute validates cfg and returns a HashAttribute strategy.
func NewHashAttribute(cfg HashAttributeConfig) (*HashAttribute, error) {
	if cfg.NumShards < 2 {
		return nil, fmt.Errorf("router: hash-on-attribute requires numSets >= 2, got %d", cfg.NumShards)
	}
	if strings.TrimSpace(cfg.Attribute) == "" {
		return nil, fmt.Errorf("router: hash-on-attribute requires an attribute name")
	}
	return &HashAttribute{
		numShards:     cfg.NumShards,
		attribute:     strings.ToLower(cfg.Attribute),
		useAllValues:  cfg.UseAllValues,
		assumeFlatDIT: cfg.AssumeFlatDIT,
	}, nil
}

func (s *HashAttribute) Name() string         { return "hash-on-attribute" }
func (s *HashAttribute) NumShards() int       { return s.numShards }
func (s *HashAttribute) NeedsParentMap() bool { return true }
func (s *HashAttribute) AssumeFlatDIT() bool  { return s.assumeFlatDIT }

func (s *HashAttribute) RouteOneLevel(rdn dn.RDN, attrs map[string][]string) (entry.ShardID, error) {
	values := attrs[s.attribute]
	if len(values) == 0 {
		return hashRDNShard(rdn, s.numShards), nil
	}

	var combined string
	if s.useAllValues {
		normalized := make([]string, len(values))
		for i, v := range values {
			normalized[i] = dn.NormalizeValue(v)
		}
		combined = strings.Join(normalized, valueSeparator)
	} else {
		combined = dn.NormalizeValue(values[0])
	}

	idx := fnv32a(combined) % uint32(s.numShards)
	return entry.ShardID(idx + 1), nil
}
