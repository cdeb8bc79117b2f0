package channels

import (
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker builds the circuit breaker shared by provider-facing
// backends. The breaker trips once at least three calls were made in the
// rolling interval and 60% of them failed, then stays open for a minute
// before letting probe requests through.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
}
