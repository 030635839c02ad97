// Package progress reports read-count progress lines at a fixed cadence
// (spec §6, "a line to standard output every 1000 entries read"),
// adapted from streamz/monitor.go's interval-based Monitor[T]: that
// processor reports on a time.Ticker, but spec §6 pins the trigger to a
// count threshold instead, so Reporter counts ticks itself rather than
// running a background goroutine.
package progress

import (
	"fmt"
	"io"

	"github.com/zoobzio/clockz"
)

// Reporter emits a progress line every Every entries read, and tracks
// elapsed time via Clock so tests can assert a deterministic rate
// without sleeping (the one place this repository's single real
// third-party dependency, clockz, earns its keep).
type Reporter struct {
	Clock clockz.Clock
	Every int64
	Out   io.Writer

	startTime int64
	lastCount int64
}

// NewReporter builds a Reporter that reports every n entries to w using
// clock for timing. n must be positive; non-positive values are raised
// to 1000, the spec's default.
func NewReporter(clock clockz.Clock, n int64, w io.Writer) *Reporter {
	if n <= 0 {
		n = 1000
	}
	return &Reporter{
		Clock:     clock,
		Every:     n,
		Out:       w,
		startTime: clock.Now().Unix(),
	}
}

// Tick reports entriesRead if it has crossed a multiple of Every since
// the last report. It is safe to call on every entry read; Reporter
// itself is not goroutine-safe and must be driven from a single
// goroutine (the dispatcher, spec §4.E step 4).
func (r *Reporter) Tick(entriesRead int64) {
	if entriesRead == 0 || entriesRead/r.Every == r.lastCount/r.Every {
		return
	}
	r.report(entriesRead)
}

// Final always emits a report, regardless of whether entriesRead lands
// on an Every boundary — spec §4.E "at end-of-stream... print the total
// read count."
func (r *Reporter) Final(entriesRead int64) {
	r.report(entriesRead)
}

func (r *Reporter) report(entriesRead int64) {
	elapsed := r.Clock.Now().Unix() - r.startTime
	rate := float64(entriesRead)
	if elapsed > 0 {
		rate = float64(entriesRead) / float64(elapsed)
	}
	fmt.Fprintf(r.Out, "%d entries read (%.1f entries/sec)\n", entriesRead, rate)
	r.lastCount = entriesRead
}
