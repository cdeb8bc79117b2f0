package monitor_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/monitor"
)

func TestCounter(t *testing.T) {
	m := monitor.New()

	m.Counter("dispatch.total").Inc()
	m.Counter("dispatch.total").Add(4)

	assert.EqualValues(t, 5, m.Counter("dispatch.total").Value())
	assert.Equal(t, map[string]int64{"dispatch.total": 5}, m.Counters())
}

func TestTimerStats(t *testing.T) {
	m := monitor.New()
	timer := m.Timer("channel.email")

	for i := 1; i <= 100; i++ {
		timer.Observe(time.Duration(i) * time.Millisecond)
	}

	stats := m.Stats("channel.email")
	assert.EqualValues(t, 100, stats.Count)
	assert.Equal(t, 1*time.Millisecond, stats.Min)
	assert.Equal(t, 100*time.Millisecond, stats.Max)
	assert.Equal(t, 50*time.Millisecond, stats.P50)
	assert.Equal(t, 95*time.Millisecond, stats.P95)
	assert.Equal(t, 99*time.Millisecond, stats.P99)
	assert.Equal(t, 50500*time.Microsecond, stats.Avg)
}

func TestTimerWindowWraps(t *testing.T) {
	m := monitor.New(monitor.WithWindow(4))
	timer := m.Timer("t")

	for i := 1; i <= 6; i++ {
		timer.Observe(time.Duration(i) * time.Second)
	}

	stats := timer.Stats()
	// Lifetime count keeps growing; the distribution covers the last 4.
	assert.EqualValues(t, 6, stats.Count)
	assert.Equal(t, 3*time.Second, stats.Min)
	assert.Equal(t, 6*time.Second, stats.Max)
}

func TestStats_UnknownTimer(t *testing.T) {
	m := monitor.New()
	assert.Equal(t, monitor.Stats{}, m.Stats("missing"))
}

func TestMonitor_Concurrent(t *testing.T) {
	m := monitor.New()

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Counter("c").Inc()
				m.Timer("t").Observe(time.Duration(i) * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 800, m.Counter("c").Value())
	assert.EqualValues(t, 800, m.Stats("t").Count)
}
