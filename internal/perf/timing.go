// Package perf accumulates wall-clock timings per category and reports
// per-repetition statistics over the collected samples.
package perf

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Timing collects timed samples grouped by category. One sample is one
// measured span that covered a known number of repetitions of the work, so
// per-rep figures stay meaningful when callers batch repetitions inside a
// single span. Safe for concurrent use.
type Timing struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // First-use order, for stable summaries.
}

type entry struct {
	perRep []float64 // Seconds per repetition, one value per sample.
	total  time.Duration
	reps   int
}

// New creates an empty timing collector.
func New() *Timing {
	return &Timing{entries: make(map[string]*entry)}
}

// Start begins one sample span covering reps repetitions.
// The returned stop function records the elapsed time; call it exactly once.
func (t *Timing) Start(category string, reps int) (stop func()) {
	begin := time.Now()
	return func() {
		t.Record(category, reps, time.Since(begin))
	}
}

// Time measures fn as one sample span covering reps repetitions.
func (t *Timing) Time(category string, reps int, fn func()) {
	stop := t.Start(category, reps)
	defer stop()
	fn()
}

// Record accumulates one already-measured sample.
// Panics if reps is not positive.
func (t *Timing) Record(category string, reps int, d time.Duration) {
	if reps <= 0 {
		panic(fmt.Sprintf("perf: sample with %d reps", reps))
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[category]
	if !ok {
		e = &entry{}
		t.entries[category] = e
		t.order = append(t.order, category)
	}
	e.perRep = append(e.perRep, d.Seconds()/float64(reps))
	e.total += d
	e.reps += reps
}

// Stats summarizes one category.
type Stats struct {
	Category string
	Samples  int
	Reps     int
	Total    time.Duration
	Mean     time.Duration // Mean time per repetition.
	StdDev   time.Duration // Spread of per-repetition time across samples.
}

// Stats returns the statistics collected for a category.
// A category with no samples yields zero Stats.
func (t *Timing) Stats(category string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[category]
	if !ok {
		return Stats{Category: category}
	}
	s := Stats{
		Category: category,
		Samples:  len(e.perRep),
		Reps:     e.reps,
		Total:    e.total,
		Mean:     seconds(stat.Mean(e.perRep, nil)),
	}
	if len(e.perRep) > 1 {
		s.StdDev = seconds(stat.StdDev(e.perRep, nil))
	}
	return s
}

// Categories returns all categories in first-use order.
func (t *Timing) Categories() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

// Reset drops every collected sample.
func (t *Timing) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*entry)
	t.order = nil
}

// Summary renders one line per category in first-use order.
func (t *Timing) Summary() string {
	var sb strings.Builder
	for _, category := range t.Categories() {
		s := t.Stats(category)
		fmt.Fprintf(&sb, "Timing [%s] mean %s/rep, stddev %s (%d reps in %d samples, total %s)\n",
			s.Category, s.Mean, s.StdDev, s.Reps, s.Samples, s.Total)
	}
	return sb.String()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
