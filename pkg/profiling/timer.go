// Package profiling adds opt-in CPU and heap profiles and a timing summary
// to the launcher commands.
package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Stopper ends a timed span.
type Stopper interface {
	Stop()
}

type span struct {
	name     string
	start    time.Time
	duration time.Duration
	done     bool
	rec      *Recorder
}

func (s *span) Stop() {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	if !s.done {
		s.duration = time.Since(s.start)
		s.done = true
	}
}

// Recorder collects spans from any goroutine. Spans are reported in start
// order; they are not nested.
type Recorder struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	spans   []*span
}

var defaultRecorder = &Recorder{}

// Enable turns on the global recorder.
func Enable() {
	defaultRecorder.enable()
}

// Enabled reports whether spans are being recorded.
func Enabled() bool {
	defaultRecorder.mu.Lock()
	defer defaultRecorder.mu.Unlock()
	return defaultRecorder.enabled
}

// Start begins a span on the global recorder. Use it with defer:
//
//	defer profiling.Start("open_store").Stop()
func Start(name string) Stopper {
	return defaultRecorder.Start(name)
}

// Summarize writes the global recorder's summary to w.
func Summarize(w io.Writer) {
	defaultRecorder.Summarize(w)
}

func (r *Recorder) enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return
	}
	r.enabled = true
	r.started = time.Now()
}

// Start begins a span; it is a no-op until the recorder is enabled.
func (r *Recorder) Start(name string) Stopper {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return noopStopper{}
	}
	s := &span{name: name, start: time.Now(), rec: r}
	r.spans = append(r.spans, s)
	return s
}

// Summarize prints every span with its share of the time since Enable.
// Spans still running are marked as such.
func (r *Recorder) Summarize(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	total := time.Since(r.started)
	spans := append([]*span(nil), r.spans...)
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	fmt.Fprintln(w, "\n--- Timing Profile ---")
	for _, s := range spans {
		if !s.done {
			fmt.Fprintf(w, "- %s (running)\n", s.name)
			continue
		}
		pct := 0.0
		if total > 0 {
			pct = float64(s.duration) / float64(total) * 100
		}
		fmt.Fprintf(w, "- %s (%v, %.1f%%)\n", s.name, s.duration.Round(100*time.Microsecond), pct)
	}
	fmt.Fprintf(w, "total %v\n", total.Round(100*time.Microsecond))
	fmt.Fprintln(w, "--------------------")
}

type noopStopper struct{}

func (noopStopper) Stop() {}
