package broadcasts

import (
	"context"
	"log/slog"
	"time"

	"github.com/notifykit/notifykit/pkg/logger"
)

// Tracker answers acknowledgement questions: who has seen which broadcast,
// and whether a user is gated by an unacknowledged blocking one.
type Tracker struct {
	storage Storage
	log     *slog.Logger
	now     func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerLogger sets the logger.
func WithTrackerLogger(log *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// WithTrackerClock overrides the time source. Test hook.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates an acknowledgement tracker over storage.
func NewTracker(storage Storage, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		storage: storage,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Acknowledge records that the user saw the broadcast. Idempotent: the
// first call creates the row, every later call returns that same row with
// its original AckedAt. The broadcast must exist for the tenant.
func (t *Tracker) Acknowledge(ctx context.Context, tenantID, broadcastID, userID, channel string) (Acknowledgement, error) {
	if _, err := t.storage.GetMessage(ctx, tenantID, broadcastID); err != nil {
		return Acknowledgement{}, err
	}

	ack, err := t.storage.CreateAck(ctx, Acknowledgement{
		UserID:      userID,
		BroadcastID: broadcastID,
		TenantID:    tenantID,
		AckedAt:     t.now().UTC(),
		Channel:     channel,
	})
	if err != nil {
		return Acknowledgement{}, err
	}

	t.log.LogAttrs(ctx, slog.LevelDebug, "broadcast acknowledged",
		logger.Tenant(tenantID),
		logger.UserID(userID),
		logger.BroadcastID(broadcastID),
	)
	return ack, nil
}

// PendingBlocking returns the active blocking broadcasts targeting the user
// that the user has not yet acknowledged, ordered by ScheduledFor.
func (t *Tracker) PendingBlocking(ctx context.Context, tenantID, userID string, roles []string) ([]Message, error) {
	active, err := t.storage.ListActive(ctx, tenantID, t.now())
	if err != nil {
		return nil, err
	}

	var candidates []Message
	ids := make([]string, 0, len(active))
	for _, msg := range active {
		if msg.Blocking && msg.Targets(roles) {
			candidates = append(candidates, msg)
			ids = append(ids, msg.ID)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	acked, err := t.storage.AckedIDs(ctx, tenantID, userID, ids)
	if err != nil {
		return nil, err
	}

	pending := candidates[:0]
	for _, msg := range candidates {
		if !acked[msg.ID] {
			pending = append(pending, msg)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	return pending, nil
}

// RequireGate returns the first pending blocking broadcast for the user, or
// nil when nothing gates access.
func (t *Tracker) RequireGate(ctx context.Context, tenantID, userID string, roles []string) (*Message, error) {
	pending, err := t.PendingBlocking(ctx, tenantID, userID, roles)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	return &pending[0], nil
}

// ExpireSweep deactivates every broadcast past its expiry and returns how
// many it touched. Idempotent; the runner calls it periodically.
func (t *Tracker) ExpireSweep(ctx context.Context, now time.Time) (int64, error) {
	touched, err := t.storage.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if touched > 0 {
		t.log.LogAttrs(ctx, slog.LevelInfo, "expired broadcasts deactivated",
			slog.Int64("count", touched),
		)
	}
	return touched, nil
}
