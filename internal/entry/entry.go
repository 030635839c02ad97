// Package entry defines the value types that flow between the LDIF
// reader, the router, and the dispatcher: a parsed record, the shard set
// it resolves to, and the translated (routed, serialized) form the
// dispatcher consumes. These are the non-generic specialization of the
// success/error carrier shape streamz's Result[T] establishes, narrowed
// to the one pipeline this repository runs.
package entry

import (
	"fmt"

	"github.com/ldaptools/dirsplit/internal/dn"
)

// ShardID identifies a single output shard. Numbered shards are 1..N;
// the two reserved tags below are negative, so they never collide with a
// numbered shard.
type ShardID int

const (
	// ShardOutside is the dedicated-outside reserved shard.
	ShardOutside ShardID = -1
	// ShardErrors is the malformed/unroutable-record reserved shard.
	ShardErrors ShardID = -2
)

// String renders the shard identifier the way it appears in filenames
// and log lines: "set3", "outside-split-base-dn", or "errors".
func (s ShardID) String() string {
	switch s {
	case ShardOutside:
		return "outside-split-base-dn"
	case ShardErrors:
		return "errors"
	default:
		return fmt.Sprintf("set%d", int(s))
	}
}

// ShardSet is a finite, possibly empty set of shard identifiers. An empty
// set means "exclude this entry" (data model invariant 3/"Exclusion").
type ShardSet map[ShardID]struct{}

// NewShardSet builds a ShardSet from the given identifiers.
func NewShardSet(ids ...ShardID) ShardSet {
	s := make(ShardSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Equal reports whether two shard sets contain the same identifiers.
func (s ShardSet) Equal(other ShardSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the shard identifiers in ascending order, useful for
// deterministic iteration when writing to multiple shard files.
func (s ShardSet) Sorted() []ShardID {
	ids := make([]ShardID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// ParsedEntry is one LDIF record as handed off by internal/ldifio: its
// distinguished name, its attributes (for routing), and the raw lines
// that make up its byte-exact serialization.
type ParsedEntry struct {
	DN    dn.DN
	RawDN string
	// Attrs maps a lower-cased attribute name to its values, in the
	// order they appeared in the record.
	Attrs map[string][]string
	// Lines holds the record's raw LDIF lines (including the "dn:"
	// line), not yet terminated by a blank line.
	Lines []string
	// Seq is the monotonic sequence number the reader assigned this
	// record, establishing source order across concurrent workers.
	Seq uint64
}

// Bytes renders the record as byte-exact LDIF: its lines joined with
// '\n', terminated by a blank line (data model invariant 4).
func (p ParsedEntry) Bytes() []byte {
	out := make([]byte, 0, 64)
	for _, line := range p.Lines {
		out = append(out, line...)
		out = append(out, '\n')
	}
	out = append(out, '\n')
	return out
}

// TranslatedEntry is the output of the translation pipeline: a parsed
// entry paired with its routing decision, or a parse failure carried
// through for the dispatcher to materialize into the errors shard.
type TranslatedEntry struct {
	Entry ParsedEntry
	// Shards is the routing decision. Meaningless when Deferred is true
	// or ParseErr is non-nil.
	Shards ShardSet
	// Deferred is true when routing needs a parent-map entry that had
	// not yet been committed at translation time; the dispatcher
	// retries once at consumption time (spec §4.D).
	Deferred bool
	// Bytes is the byte-exact LDIF serialization of Entry. Empty when
	// ParseErr is non-nil.
	Bytes []byte
	// ParseErr is non-nil for a malformed record; Entry is the zero
	// value in that case and RawLines carries whatever bytes the
	// reader could recover for the errors-shard record.
	ParseErr error
	RawLines []string
}
