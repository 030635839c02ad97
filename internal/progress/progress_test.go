package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestTickReportsOnEveryBoundary(t *testing.T) {
	clock := clockz.NewFakeClock()
	var buf bytes.Buffer
	r := NewReporter(clock, 1000, &buf)

	for i := int64(1); i < 1000; i++ {
		r.Tick(i)
	}
	if buf.Len() != 0 {
		t.Fatalf("should not report before reaching Every, got %q", buf.String())
	}

	r.Tick(1000)
	if !strings.Contains(buf.String(), "1000 entries read") {
		t.Fatalf("expected a report at the 1000 boundary, got %q", buf.String())
	}
}

func TestTickRateUsesElapsedClockTime(t *testing.T) {
	clock := clockz.NewFakeClock()
	var buf bytes.Buffer
	r := NewReporter(clock, 1000, &buf)

	clock.Advance(2 * time.Second)
	r.Tick(1000)

	if !strings.Contains(buf.String(), "500.0 entries/sec") {
		t.Fatalf("expected rate of 500/sec over 2 seconds, got %q", buf.String())
	}
}

func TestFinalAlwaysReports(t *testing.T) {
	clock := clockz.NewFakeClock()
	var buf bytes.Buffer
	r := NewReporter(clock, 1000, &buf)

	r.Final(37)
	if !strings.Contains(buf.String(), "37 entries read") {
		t.Fatalf("expected a final report off the boundary, got %q", buf.String())
	}
}
