// Package ldifio is the LDIF tokenizer/reader: the external collaborator
// spec.md treats by contract only, concretely implemented here because
// this repository must run end to end. It concatenates one or more
// sources, optionally GZIP-decompressing them, splits the result into
// blank-line-delimited records (folding RFC 2849 continuation lines),
// and parses each into an entry.ParsedEntry with a monotonic sequence
// number — the source-order anchor internal/translate's reorder buffer
// and internal/dispatch's drain loop both depend on.
package ldifio

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ldaptools/dirsplit/internal/entry"
)

// Source is one named input: a file path (or "-" / "<stdin>" for
// standard input) paired with its already-opened reader.
type Source struct {
	Name string
	R    io.Reader
}

// Record is one tokenized unit handed from the reader to
// internal/translate: either a successfully parsed entry, or a parse
// failure the dispatcher will materialize into the errors shard. Seq is
// assigned to every record, successful or not, so downstream reordering
// stages have a stable source-order key regardless of outcome.
type Record struct {
	Seq   uint64
	Entry entry.ParsedEntry // valid only when Err is nil
	Err   error
}

// OpenSources opens each path for reading, in order, gzip-decompressing
// when gzipped is true. A literal "-" reads standard input. On the first
// failure to open a path it returns an *InputOpenError and closes
// whatever it already opened.
func OpenSources(paths []string, gzipped bool) ([]Source, func() error, error) {
	var sources []Source
	var closers []io.Closer

	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	for _, p := range paths {
		var raw io.Reader
		var name string

		if p == "-" {
			raw = os.Stdin
			name = "<stdin>"
		} else {
			f, err := os.Open(p)
			if err != nil {
				closeAll()
				return nil, nil, &InputOpenError{Path: p, Err: err}
			}
			closers = append(closers, f)
			raw = f
			name = p
		}

		r := raw
		if gzipped {
			gz, err := gzip.NewReader(raw)
			if err != nil {
				closeAll()
				return nil, nil, &InputOpenError{Path: name, Err: fmt.Errorf("gzip: %w", err)}
			}
			closers = append(closers, gz)
			r = gz
		}

		sources = append(sources, Source{Name: name, R: r})
	}

	return sources, closeAll, nil
}

// concatReader joins every source's bytes with two LF separators between
// them (spec §6, "two end-of-line sequences... to prevent record
// run-together").
func concatReader(sources []Source) io.Reader {
	readers := make([]io.Reader, 0, len(sources)*2-1)
	for i, s := range sources {
		if i > 0 {
			readers = append(readers, strings.NewReader("\n\n"))
		}
		readers = append(readers, s.R)
	}
	return io.MultiReader(readers...)
}

// Read tokenizes sources and emits Records on the returned channel, in
// source order, until the stream is exhausted, the context is
// cancelled, or an UnrecoverableParseError or I/O error stops the
// reader. The channel is closed when Read returns.
func Read(ctx context.Context, sources []Source) <-chan Record {
	out := make(chan Record)

	go func() {
		defer close(out)

		rs := newRecordScanner(concatReader(sources))
		var seq uint64

		for {
			rec, ok, err := rs.next()
			if err != nil {
				select {
				case out <- Record{Seq: seq, Err: &UnrecoverableParseError{Err: err}}:
				case <-ctx.Done():
				}
				return
			}
			if !ok {
				return
			}

			pe, perr := parseRecord(rec, seq)
			var r Record
			if perr != nil {
				r = Record{Seq: seq, Err: &RecoverableParseError{Lines: rec.lines, Err: perr}}
			} else {
				r = Record{Seq: seq, Entry: pe}
			}
			seq++

			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
