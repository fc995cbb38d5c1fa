package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps the most recent validation durations in a ring buffer
// and computes percentiles over them.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	total   int
}

// LatencySummary is a point-in-time view of a tracker.
type LatencySummary struct {
	Samples int           `json:"samples"`
	Total   int           `json:"total"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	Max     time.Duration `json:"max"`
}

// NewLatencyTracker creates a tracker holding up to size samples.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = 512
	}
	return &LatencyTracker{samples: make([]time.Duration, size)}
}

// Observe records a duration, overwriting the oldest sample once full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.samples[l.next] = d
	l.next = (l.next + 1) % len(l.samples)
	if l.next == 0 {
		l.full = true
	}
	l.total++
}

// Count returns the number of samples currently held.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held()
}

// Total returns the number of observations ever recorded.
func (l *LatencyTracker) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Percentile returns the p-th percentile (0-100) of the held samples, or zero
// when empty.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	return percentile(l.sorted(), p)
}

// Summary returns the median, p95 and max of the held samples.
func (l *LatencyTracker) Summary() LatencySummary {
	sorted := l.sorted()
	s := LatencySummary{
		Samples: len(sorted),
		Total:   l.Total(),
		P50:     percentile(sorted, 50),
		P95:     percentile(sorted, 95),
	}
	if len(sorted) > 0 {
		s.Max = sorted[len(sorted)-1]
	}
	return s
}

func (l *LatencyTracker) held() int {
	if l.full {
		return len(l.samples)
	}
	return l.next
}

func (l *LatencyTracker) sorted() []time.Duration {
	l.mu.Lock()
	out := append([]time.Duration(nil), l.samples[:l.held()]...)
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// percentile uses nearest-rank on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}
	idx := int(p / 100 * float64(n-1))
	return sorted[idx]
}
