// Package translate runs the routing+serialization stage of the
// pipeline (spec §4.D) as an ordered pool of concurrent workers,
// generalizing streamz/async_mapper.go's AsyncMapper[In, Out]: a pool of
// NumWorkers goroutines pulls ldifio.Records, invokes the router and
// serializes the entry, and a single reorder goroutine re-sequences
// results by Seq into a reorder buffer before emitting — so the channel
// internal/dispatch reads from is back in source order regardless of
// which worker finished first.
package translate

import (
	"context"
	"sync"

	"github.com/ldaptools/dirsplit/internal/entry"
	"github.com/ldaptools/dirsplit/internal/ldifio"
	"github.com/ldaptools/dirsplit/internal/router"
)

// Pipeline routes and serializes every ldifio.Record it receives.
type Pipeline struct {
	Router     *router.Router
	NumWorkers int
}

// New builds a Pipeline with the given router and worker count. A
// non-positive workers is raised to 1.
func New(r *router.Router, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{Router: r, NumWorkers: workers}
}

// sequencedResult pairs a TranslatedEntry with the reader's source
// sequence number, mirroring streamz/async_mapper.go's sequencedItem[T]
// — a detail internal to the reorder stage, kept out of entry.TranslatedEntry
// itself because a parse failure's Entry is the zero value and cannot
// carry a meaningful Seq.
type sequencedResult struct {
	te  entry.TranslatedEntry
	seq uint64
}

// Run drives in to completion and returns a channel of TranslatedEntry
// in source order. The channel is closed once in is closed and every
// worker has drained.
func (p *Pipeline) Run(ctx context.Context, in <-chan ldifio.Record) <-chan entry.TranslatedEntry {
	work := make(chan ldifio.Record, p.NumWorkers)
	results := make(chan sequencedResult, p.NumWorkers)
	out := make(chan entry.TranslatedEntry)

	go func() {
		defer close(work)
		for rec := range in {
			select {
			case work <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				result := sequencedResult{te: p.translate(rec), seq: rec.Seq}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go reorder(ctx, results, out)

	return out
}

// translate is pure with respect to rec: no mutation, no I/O, no
// blocking beyond the parent-map lock the router may take (spec §4.D).
func (p *Pipeline) translate(rec ldifio.Record) entry.TranslatedEntry {
	if rec.Err != nil {
		return entry.TranslatedEntry{ParseErr: rec.Err, RawLines: parseErrLines(rec.Err)}
	}

	shards, deferred := p.Router.Route(rec.Entry)
	return entry.TranslatedEntry{
		Entry:    rec.Entry,
		Shards:   shards,
		Deferred: deferred,
		Bytes:    rec.Entry.Bytes(),
	}
}

func parseErrLines(err error) []string {
	switch e := err.(type) {
	case *ldifio.RecoverableParseError:
		return e.Lines
	case *ldifio.UnrecoverableParseError:
		return e.Lines
	default:
		return nil
	}
}

// reorder re-sequences results by seq into a pending buffer and emits
// them on out in ascending order, exactly as
// streamz/async_mapper.go's processOrdered does for its results channel.
func reorder(ctx context.Context, results <-chan sequencedResult, out chan<- entry.TranslatedEntry) {
	defer close(out)

	pending := make(map[uint64]entry.TranslatedEntry)
	var next uint64

	emit := func(te entry.TranslatedEntry) bool {
		select {
		case out <- te:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for r := range results {
		pending[r.seq] = r.te
		for {
			te, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if !emit(te) {
				return
			}
		}
	}

	// Drain anything left (should only happen if seq numbers were never
	// contiguous, which the reader guarantees they are).
	for len(pending) > 0 {
		te, ok := pending[next]
		if ok {
			delete(pending, next)
			if !emit(te) {
				return
			}
		}
		next++
	}
}
