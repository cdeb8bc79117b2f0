package dispatch

import (
	"fmt"
	"time"
)

// Priority selects the delivery path: critical notifications always
// dispatch immediately, normal ones may be deferred into a digest when the
// recipient configured one for the event group.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityCritical Priority = "critical"
)

// Notification is one notification instance. It is immutable after
// creation; delivery state lives in DeliveryRecords, never here.
type Notification struct {
	ID          string         `json:"id"`
	Event       string         `json:"event"`
	RecipientID string         `json:"recipient_id"`
	TenantID    string         `json:"tenant_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	Priority    Priority       `json:"priority"`
	Channels    []string       `json:"channels"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Status is the lifecycle state of one delivery attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusFallback  Status = "fallback"
	StatusSkipped   Status = "skipped"
)

// transitions lists the legal status moves. Delivered, fallback, and
// skipped are terminal. Failed may still become fallback when a fallback
// attempt delivers on the primary's behalf.
var transitions = map[Status][]Status{
	StatusPending: {StatusDelivered, StatusFailed, StatusFallback, StatusSkipped},
	StatusFailed:  {StatusFallback},
}

// DeliveryRecord tracks one channel attempt for one notification.
type DeliveryRecord struct {
	Channel    string    `json:"channel"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`

	// meta carries backend metadata for in-flight decisions (fallback on
	// realtime no-audience). Not part of the persisted record.
	meta map[string]string
}

func newRecord(channel string, now time.Time) *DeliveryRecord {
	return &DeliveryRecord{Channel: channel, Status: StatusPending, Timestamp: now}
}

// transition moves the record to a new status, rejecting moves out of a
// terminal state.
func (r *DeliveryRecord) transition(to Status, now time.Time) error {
	for _, allowed := range transitions[r.Status] {
		if allowed == to {
			r.Status = to
			r.Timestamp = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s on channel %s", ErrInvalidTransition, r.Status, to, r.Channel)
}

// Delivered reports whether this record counts as a successful delivery.
func (r *DeliveryRecord) Delivered() bool {
	return r.Status == StatusDelivered || r.Status == StatusFallback
}
