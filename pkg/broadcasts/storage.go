package broadcasts

import (
	"context"
	"time"
)

// Storage persists broadcast messages and acknowledgements.
type Storage interface {
	// CreateMessage stores a new broadcast.
	CreateMessage(ctx context.Context, msg Message) error

	// GetMessage returns one broadcast scoped to tenant, or ErrNotFound.
	GetMessage(ctx context.Context, tenantID, id string) (Message, error)

	// ListActive returns the tenant's broadcasts active at now, ordered by
	// ScheduledFor ascending.
	ListActive(ctx context.Context, tenantID string, now time.Time) ([]Message, error)

	// DeactivateExpired flips active off for every message past its
	// expiry and returns how many it touched.
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)

	// CreateAck stores the acknowledgement unless one already exists for
	// the same (user, broadcast, tenant). It returns the stored row, which
	// on conflict is the original one with its original AckedAt.
	CreateAck(ctx context.Context, ack Acknowledgement) (Acknowledgement, error)

	// AckedIDs reports which of the given broadcast ids the user has
	// acknowledged.
	AckedIDs(ctx context.Context, tenantID, userID string, broadcastIDs []string) (map[string]bool, error)
}
