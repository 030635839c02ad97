package dispatch

import (
	"errors"
	"fmt"
)

// OutputError reports that a shard file could not be opened or written
// to (spec §7.7). It always terminates the drain loop.
type OutputError struct {
	Shard string
	Err   error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("dispatch: shard %s: %v", e.Shard, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// ErrRecordedFailures is returned by Sink.Run when the drain loop
// completed but recorded at least one recoverable failure along the way
// (a malformed record or a routing error) — spec §6 "exit code: ...
// non-zero when ... any routing produced an error record."
var ErrRecordedFailures = errors.New("dispatch: run completed with recorded errors")
