package digest

import (
	"context"
	"slices"
	"time"
)

// Entry is one deferred notification waiting for its digest boundary.
type Entry struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	TenantID     string         `json:"tenant_id"`
	GroupKey     string         `json:"group_key"`
	Payload      map[string]any `json:"payload,omitempty"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Sent         bool           `json:"sent"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (e Entry) validate() error {
	if e.UserID == "" || e.TenantID == "" || e.GroupKey == "" {
		return ErrInvalidEntry
	}
	return nil
}

// Storage persists digest entries. ClaimDue and MarkSent together carry the
// no-double-send guarantee: claiming marks entries in-flight for claimFor,
// and MarkSent flips only rows still unsent, reporting how many it flipped.
type Storage interface {
	// Add stores a new unsent entry.
	Add(ctx context.Context, e Entry) error

	// ClaimDue atomically claims unsent entries due at now (scheduled at or
	// before now, not currently claimed) and returns them. Claims expire
	// after claimFor so a crashed flush never strands entries.
	ClaimDue(ctx context.Context, now time.Time, claimFor time.Duration) ([]Entry, error)

	// MarkSent flips the given entries to sent, skipping any already sent,
	// and returns how many rows actually flipped.
	MarkSent(ctx context.Context, ids []string) (int64, error)

	// Release drops the claim on unsent entries so the next flush retries
	// them.
	Release(ctx context.Context, ids []string) error

	// Purge deletes sent entries created before cutoff and returns the
	// deleted count.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// sortEntries orders entries the way a digest lists them: by ScheduledFor,
// ties broken by CreatedAt.
func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
