package digest

import "time"

// Frequency is a recipient's digest cadence for one event group.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyDisabled Frequency = "disabled"
)

// NextBoundary returns the first digest boundary strictly after now.
// Daily: the next occurrence of the boundary hour. Weekly: the next
// occurrence of the boundary hour on weeklyDay. An enqueue at exactly the
// boundary lands in the following period.
func NextBoundary(now time.Time, freq Frequency, hour int, weeklyDay time.Weekday) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())

	switch freq {
	case FrequencyWeekly:
		for candidate.Weekday() != weeklyDay || !now.Before(candidate) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	default:
		if !now.Before(candidate) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	}
	return candidate
}
