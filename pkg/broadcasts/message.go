package broadcasts

import (
	"slices"
	"time"
)

// Message is a tenant-scoped one-to-many announcement.
type Message struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Event       string     `json:"event"`
	TargetRoles []string   `json:"target_roles,omitempty"`
	ShowToAll   bool       `json:"show_to_all"`
	Blocking    bool       `json:"blocking"`
	Pinned      bool       `json:"pinned"`
	ScheduledFor time.Time `json:"scheduled_for"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Channels    []string   `json:"channels"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (m Message) validate() error {
	if m.TenantID == "" || m.Title == "" || m.Event == "" {
		return ErrInvalidMessage
	}
	return nil
}

// ActiveAt reports whether the message is inside its delivery window:
// explicitly active, scheduled at or before now, and not expired.
func (m Message) ActiveAt(now time.Time) bool {
	if !m.Active || m.ScheduledFor.After(now) {
		return false
	}
	if m.ExpiresAt != nil && !m.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Targets reports whether the message addresses a user holding the given
// roles.
func (m Message) Targets(roles []string) bool {
	if m.ShowToAll || len(m.TargetRoles) == 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(m.TargetRoles, r) {
			return true
		}
	}
	return false
}

// Acknowledgement records that one user saw one broadcast. At most one row
// exists per (user, broadcast, tenant); rows are never deleted.
type Acknowledgement struct {
	UserID      string    `json:"user_id"`
	BroadcastID string    `json:"broadcast_id"`
	TenantID    string    `json:"tenant_id"`
	AckedAt     time.Time `json:"acked_at"`
	Channel     string    `json:"channel,omitempty"`
}
