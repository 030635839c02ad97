package router

import (
	"hash/fnv"

	"github.com/ldaptools/dirsplit/internal/dn"
	"github.com/ldaptools/dirsplit/internal/entry"
)

// fnv32a hashes s with FNV-1a/32, the non-cryptographic, locale-independent
// hash spec §4.B.1/§9 pins for cross-run determinism.
func fnv32a(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s)) // hash.Hash32's Write never fails.
	return h.Sum32()
}

// hashRDNShard implements the hash-on-RDN rule (spec §4.B.1): hash the
// canonical RDN string, reduce modulo numShards, select that shard
// (1-indexed).
func hashRDNShard(rdn dn.RDN, numShards int) entry.ShardID {
	idx := fnv32a(dn.CanonicalRDN(rdn)) % uint32(numShards)
	return entry.ShardID(idx + 1)
}
