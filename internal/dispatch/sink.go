// Package dispatch is the single-consumer sink of spec §4.E: it drains
// translated entries in source order, lazily opens shard output files,
// recovers malformed records into the errors shard, and reports
// progress and a final summary. Grounded on streamz/dlq.go's
// dead-letter-on-failure shape (the errors shard is this pipeline's DLQ)
// and streamz/retry.go's backoff shape (trimmed in retry.go to shard-file
// opening only).
package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/zoobzio/clockz"

	"github.com/ldaptools/dirsplit/internal/entry"
	"github.com/ldaptools/dirsplit/internal/ldifio"
	"github.com/ldaptools/dirsplit/internal/progress"
	"github.com/ldaptools/dirsplit/internal/router"
)

// Config configures a Sink.
type Config struct {
	BasePath string
	Compress bool
	Router   *router.Router
	Progress *progress.Reporter
	Clock    clockz.Clock
	Out      io.Writer // summary and progress destination, normally os.Stdout
}

// Sink is the dispatcher: single goroutine, owns every output stream
// and counter, no locking required (spec §5, "Output streams and
// counters: owned exclusively by the dispatcher").
type Sink struct {
	cfg   Config
	retry openRetry

	handles map[entry.ShardID]*shardFile
	counts  map[entry.ShardID]int64

	entriesRead     int64
	entriesExcluded int64
	recordedFailure bool
}

// NewSink builds a Sink from cfg.
func NewSink(cfg Config) *Sink {
	clock := cfg.Clock
	if clock == nil {
		clock = clockz.RealClock
	}
	return &Sink{
		cfg:     cfg,
		retry:   newOpenRetry(clock),
		handles: make(map[entry.ShardID]*shardFile),
		counts:  make(map[entry.ShardID]int64),
	}
}

// Run drains in to completion. It returns a non-nil *OutputError the
// instant a shard file fails to open or write (spec §5 "Cancellation"),
// ErrRecordedFailures if the run completed but recorded at least one
// malformed record or unresolved routing deferral, and nil otherwise.
func (s *Sink) Run(ctx context.Context, in <-chan entry.TranslatedEntry) error {
	defer s.closeAll()

	for te := range in {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.entriesRead++
		if s.cfg.Progress != nil {
			s.cfg.Progress.Tick(s.entriesRead)
		}

		if te.ParseErr != nil {
			if err := s.recoverParseError(te); err != nil {
				return err
			}
			if isUnrecoverable(te.ParseErr) {
				break
			}
			continue
		}

		shards := te.Shards
		if te.Deferred {
			resolved, stillDeferred := s.cfg.Router.Route(te.Entry)
			if stillDeferred {
				s.recordedFailure = true
				msg := (&router.RoutingError{DN: te.Entry.DN.String()}).Error()
				if err := s.writeErrorRecord(msg, te.Entry.Lines); err != nil {
					return err
				}
				continue
			}
			shards = resolved
		}

		if len(shards) == 0 {
			s.entriesExcluded++
			continue
		}

		for _, id := range shards.Sorted() {
			if err := s.writeToShard(id, te.Bytes); err != nil {
				return err
			}
		}
	}

	if s.cfg.Progress != nil {
		s.cfg.Progress.Final(s.entriesRead)
	}
	s.printSummary()

	if s.recordedFailure {
		return ErrRecordedFailures
	}
	return nil
}

func (s *Sink) recoverParseError(te entry.TranslatedEntry) error {
	s.recordedFailure = true
	return s.writeErrorRecord(te.ParseErr.Error(), te.RawLines)
}

func isUnrecoverable(err error) bool {
	_, ok := err.(*ldifio.UnrecoverableParseError)
	return ok
}

// writeErrorRecord materializes spec §4.E's synthetic record: a comment
// line with the diagnostic, the raw lines, then a blank line.
func (s *Sink) writeErrorRecord(message string, lines []string) error {
	b := make([]byte, 0, 64)
	b = append(b, '#', ' ')
	b = append(b, message...)
	b = append(b, '\n')
	for _, line := range lines {
		b = append(b, line...)
		b = append(b, '\n')
	}
	b = append(b, '\n')
	return s.writeToShard(entry.ShardErrors, b)
}

func (s *Sink) writeToShard(id entry.ShardID, b []byte) error {
	sf, ok := s.handles[id]
	if !ok {
		path := s.shardPath(id)
		opened, err := s.retry.open(path, s.cfg.Compress)
		if err != nil {
			return &OutputError{Shard: path, Err: err}
		}
		s.handles[id] = opened
		sf = opened
	}

	if _, err := sf.Write(b); err != nil {
		return &OutputError{Shard: s.shardPath(id), Err: err}
	}
	s.counts[id]++
	return nil
}

func (s *Sink) shardPath(id entry.ShardID) string {
	return s.cfg.BasePath + "." + id.String()
}

func (s *Sink) closeAll() {
	for _, sf := range s.handles {
		_ = sf.Close()
	}
}

func (s *Sink) printSummary() {
	fmt.Fprintf(s.cfg.Out, "%d entries read, %d excluded\n", s.entriesRead, s.entriesExcluded)
	ids := make([]entry.ShardID, 0, len(s.counts))
	for id := range s.counts {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	for _, id := range ids {
		fmt.Fprintf(s.cfg.Out, "%d entries written to %s\n", s.counts[id], s.shardPath(id))
	}
}
