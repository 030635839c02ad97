package router

import (
	"fmt"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
)

// HashRDN implements spec §4.B.1: hash the canonical RDN directly below
// the split base, reduce modulo N. It is stateless and never needs the
// parent map — a descendant always recomputes its ancestor's RDN from
// its own DN, which is why it is safe with arbitrary entry arrival order
// (spec §8 "Determinism (hash strategies)").
type HashRDN struct {
	numShards int
}

// NewHashRDN validates numShards (must be >= 2, spec §4.F) and returns a
// HashRDN strategy.
func NewHashRDN(numShards int) (*HashRDN, error) {
	if numShards < 2 {
		return nil, fmt.Errorf("router: hash-on-rdn requires numSets >= 2, got %d", numShards)
	}
	return &HashRDN{numShards: numShards}, nil
}

func (s *HashRDN) Name() string        { return "hash-on-rdn" }
func (s *HashRDN) NumShards() int      { return s.numShards }
func (s *HashRDN) NeedsParentMap() bool { return false }
func (s *HashRDN) AssumeFlatDIT() bool  { return true }

// RouteOneLevel ignores attrs: hash-on-RDN never looks past the RDN.
func (s *HashRDN) RouteOneLevel(rdn dn.RDN, _ map[string][]string) (entry.ShardID, error) {
	return hashRDNShard(rdn, s.numShards), nil
}
