package dispatch

import (
	"time"

	"github.com/zoobzio/clockz"
)

// openRetry wraps shard-file opening in a small bounded exponential
// backoff, trimmed from streamz/retry.go's general-purpose Retry[T] down
// to the one knob this call site needs: a parent-directory creation race
// on some filesystems can make the first os.Create of a run fail even
// though a concurrent mkdir is about to succeed. This guards only the
// *open*; a write error on an already-open file still aborts
// immediately (spec §5 "Cancellation") — retrying a write would risk
// silently duplicating or truncating bytes already flushed downstream,
// which the spec never allows.
type openRetry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Clock       clockz.Clock
}

func newOpenRetry(clock clockz.Clock) openRetry {
	return openRetry{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, Clock: clock}
}

func (r openRetry) open(path string, compress bool) (*shardFile, error) {
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.BaseDelay * time.Duration(uint(1)<<uint(attempt-2))
			<-r.Clock.After(delay)
		}
		sf, err := openShardFile(path, compress)
		if err == nil {
			return sf, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
