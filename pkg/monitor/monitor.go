package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// defaultWindow is the number of samples a timer retains. Older samples are
// overwritten in ring order.
const defaultWindow = 1024

// Stats is a point-in-time snapshot of one timer's rolling window.
type Stats struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// Counter is a monotonically increasing counter.
type Counter struct {
	n atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() { c.n.Add(1) }

// Add adds delta.
func (c *Counter) Add(delta int64) { c.n.Add(delta) }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Timer records durations into a fixed-size ring.
type Timer struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
	total   int64
}

// Observe records one duration.
func (t *Timer) Observe(d time.Duration) {
	t.mu.Lock()
	t.samples[t.next] = d
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
	t.total++
	t.mu.Unlock()
}

// ObserveSince records the time elapsed since start.
func (t *Timer) ObserveSince(start time.Time) {
	t.Observe(time.Since(start))
}

// Stats snapshots the current window. Count is the lifetime observation
// count; the distribution covers only the retained window.
func (t *Timer) Stats() Stats {
	t.mu.Lock()
	n := t.next
	if t.filled {
		n = len(t.samples)
	}
	window := make([]time.Duration, n)
	copy(window, t.samples[:n])
	total := t.total
	t.mu.Unlock()

	if n == 0 {
		return Stats{}
	}

	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	var sum time.Duration
	for _, d := range window {
		sum += d
	}

	return Stats{
		Count: total,
		Min:   window[0],
		Max:   window[n-1],
		Avg:   sum / time.Duration(n),
		P50:   percentile(window, 0.50),
		P95:   percentile(window, 0.95),
		P99:   percentile(window, 0.99),
	}
}

// percentile reads the nearest-rank percentile from a sorted window.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Monitor is a registry of named counters and timers. The zero value is not
// usable; construct with New. All methods are safe for concurrent use and
// get-or-create on first access.
type Monitor struct {
	mu       sync.RWMutex
	window   int
	counters map[string]*Counter
	timers   map[string]*Timer
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithWindow overrides the timer window size.
func WithWindow(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.window = n
		}
	}
}

// New creates an empty monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		window:   defaultWindow,
		counters: make(map[string]*Counter),
		timers:   make(map[string]*Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Counter returns the named counter, creating it on first use.
func (m *Monitor) Counter(name string) *Counter {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c = &Counter{}
	m.counters[name] = c
	return c
}

// Timer returns the named timer, creating it on first use.
func (m *Monitor) Timer(name string) *Timer {
	m.mu.RLock()
	t, ok := m.timers[name]
	m.mu.RUnlock()
	if ok {
		return t
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[name]; ok {
		return t
	}
	t = &Timer{samples: make([]time.Duration, m.window)}
	m.timers[name] = t
	return t
}

// Stats returns the snapshot for the named timer. A timer that was never
// observed returns zero stats.
func (m *Monitor) Stats(name string) Stats {
	m.mu.RLock()
	t, ok := m.timers[name]
	m.mu.RUnlock()
	if !ok {
		return Stats{}
	}
	return t.Stats()
}

// Counters returns the current value of every counter.
func (m *Monitor) Counters() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.counters))
	for name, c := range m.counters {
		out[name] = c.Value()
	}
	return out
}
