package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/pkg/channels"
	"github.com/notifykit/notifykit/pkg/dispatch"
	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/monitor"
)

// DigestEvent is the event name the composed summary dispatches under. A
// template for it must be registered alongside the per-event templates.
const DigestEvent = "notifications.digest"

// Preferences resolves a recipient's digest cadence per event group.
type Preferences interface {
	Frequency(ctx context.Context, tenantID, userID, groupKey string) (Frequency, error)
}

// StaticPreferences serves one fixed frequency for everyone. Useful in
// tests and single-policy deployments.
type StaticPreferences Frequency

func (s StaticPreferences) Frequency(context.Context, string, string, string) (Frequency, error) {
	return Frequency(s), nil
}

// Directory resolves recipient addressing for the composed digest message.
type Directory interface {
	Address(ctx context.Context, tenantID, userID string) (Address, error)
}

// Address is the contact data a digest send needs.
type Address struct {
	Email  string
	Phone  string
	Locale string
}

// Sender is the dispatch surface the scheduler needs. *dispatch.Dispatcher
// satisfies it.
type Sender interface {
	Dispatch(ctx context.Context, req dispatch.DispatchRequest) (*dispatch.Receipt, error)
}

// Config tunes the scheduler.
type Config struct {
	// BoundaryHour is the local hour digests fire at.
	BoundaryHour int `env:"DIGEST_BOUNDARY_HOUR" envDefault:"8"`
	// WeeklyDay is the weekday weekly digests fire on.
	WeeklyDay time.Weekday `env:"-"`
	// ClaimTimeout is how long a flush holds its claim on entries.
	ClaimTimeout time.Duration `env:"DIGEST_CLAIM_TIMEOUT" envDefault:"5m"`
	// Retention is how long sent entries are kept before Purge deletes
	// them.
	Retention time.Duration `env:"DIGEST_RETENTION" envDefault:"720h"`
	// Channels carries the composed digest. Defaults to email only.
	Channels []string `env:"DIGEST_CHANNELS" envDefault:"email"`
}

func (c *Config) applyDefaults() {
	if c.BoundaryHour <= 0 || c.BoundaryHour > 23 {
		c.BoundaryHour = 8
	}
	if c.ClaimTimeout <= 0 {
		c.ClaimTimeout = 5 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	if len(c.Channels) == 0 {
		c.Channels = []string{channels.Email}
	}
}

// Scheduler defers notifications into digest entries and flushes them at
// their boundaries.
type Scheduler struct {
	storage Storage
	prefs   Preferences
	dir     Directory
	sender  Sender
	cfg     Config
	mon     *monitor.Monitor
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMonitor wires flush metrics into mon.
func WithMonitor(mon *monitor.Monitor) Option {
	return func(s *Scheduler) {
		if mon != nil {
			s.mon = mon
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a digest scheduler.
func New(cfg Config, storage Storage, prefs Preferences, dir Directory, sender Sender, opts ...Option) *Scheduler {
	cfg.applyDefaults()
	s := &Scheduler{
		storage: storage,
		prefs:   prefs,
		dir:     dir,
		sender:  sender,
		cfg:     cfg,
		mon:     monitor.New(),
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnqueueRequest describes one notification to defer.
type EnqueueRequest struct {
	TenantID string
	UserID   string
	GroupKey string
	Payload  map[string]any
}

// Enqueue stores the notification for the recipient's next digest boundary.
// It reports whether an entry was created: a disabled frequency is a no-op,
// not an error.
func (s *Scheduler) Enqueue(ctx context.Context, req EnqueueRequest) (bool, error) {
	freq, err := s.prefs.Frequency(ctx, req.TenantID, req.UserID, req.GroupKey)
	if err != nil {
		return false, fmt.Errorf("resolve digest frequency: %w", err)
	}
	if freq != FrequencyDaily && freq != FrequencyWeekly {
		return false, nil
	}

	now := s.now()
	entry := Entry{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		GroupKey:     req.GroupKey,
		Payload:      req.Payload,
		ScheduledFor: NextBoundary(now, freq, s.cfg.BoundaryHour, s.cfg.WeeklyDay),
		CreatedAt:    now,
	}
	if err := s.storage.Add(ctx, entry); err != nil {
		return false, err
	}

	s.mon.Counter("digest.enqueued").Inc()
	s.log.LogAttrs(ctx, slog.LevelDebug, "digest entry enqueued",
		logger.Tenant(req.TenantID),
		logger.UserID(req.UserID),
		logger.GroupKey(req.GroupKey),
		slog.Time("scheduled_for", entry.ScheduledFor),
	)
	return true, nil
}

// Flush claims all due entries, composes one summary per recipient, and
// sends it. It returns how many digests were sent. Per-recipient failures
// release the claim and are logged, never raised; the next flush retries
// them.
func (s *Scheduler) Flush(ctx context.Context, now time.Time) (int, error) {
	due, err := s.storage.ClaimDue(ctx, now, s.cfg.ClaimTimeout)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	sent := 0
	for key, group := range groupByRecipient(due) {
		if s.flushGroup(ctx, key, group) {
			sent++
		}
	}

	s.mon.Counter("digest.flushes").Inc()
	s.mon.Counter("digest.sent").Add(int64(sent))
	s.log.LogAttrs(ctx, slog.LevelInfo, "digest flush finished",
		slog.Int("due", len(due)),
		slog.Int("sent", sent),
	)
	return sent, nil
}

type recipientKey struct {
	tenantID string
	userID   string
}

// groupByRecipient buckets entries per recipient preserving the claimed
// order inside each bucket.
func groupByRecipient(entries []Entry) map[recipientKey][]Entry {
	groups := make(map[recipientKey][]Entry)
	for _, e := range entries {
		k := recipientKey{tenantID: e.TenantID, userID: e.UserID}
		groups[k] = append(groups[k], e)
	}
	return groups
}

// flushGroup sends one recipient's digest and reports whether it counts as
// sent. The entries are marked sent only when the dispatch delivered; a
// concurrent flush that already marked them wins and this one backs off.
func (s *Scheduler) flushGroup(ctx context.Context, key recipientKey, group []Entry) bool {
	ids := make([]string, len(group))
	items := make([]map[string]any, len(group))
	for i, e := range group {
		ids[i] = e.ID
		items[i] = map[string]any{
			"group_key": e.GroupKey,
			"payload":   e.Payload,
		}
	}

	addr, err := s.dir.Address(ctx, key.tenantID, key.userID)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "digest recipient unresolvable",
			logger.Tenant(key.tenantID),
			logger.UserID(key.userID),
			logger.Error(err),
		)
		s.release(ctx, ids)
		return false
	}

	receipt, err := s.sender.Dispatch(ctx, dispatch.DispatchRequest{
		Event:    DigestEvent,
		UserID:   key.userID,
		TenantID: key.tenantID,
		Email:    addr.Email,
		Phone:    addr.Phone,
		Locale:   addr.Locale,
		Priority: dispatch.PriorityNormal,
		Channels: s.cfg.Channels,
		Payload: map[string]any{
			"count": len(items),
			"items": items,
		},
	})
	if err != nil || !receipt.Delivered {
		s.log.LogAttrs(ctx, slog.LevelWarn, "digest send failed",
			logger.Tenant(key.tenantID),
			logger.UserID(key.userID),
			logger.Error(err),
		)
		s.mon.Counter("digest.failures").Inc()
		s.release(ctx, ids)
		return false
	}

	flipped, err := s.storage.MarkSent(ctx, ids)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "digest mark-sent failed",
			logger.Tenant(key.tenantID),
			logger.UserID(key.userID),
			logger.Error(err),
		)
		return false
	}
	if flipped == 0 {
		// A concurrent flush already sent these entries.
		s.log.LogAttrs(ctx, slog.LevelDebug, "digest entries already sent elsewhere",
			logger.Tenant(key.tenantID),
			logger.UserID(key.userID),
		)
		return false
	}
	return true
}

func (s *Scheduler) release(ctx context.Context, ids []string) {
	if err := s.storage.Release(ctx, ids); err != nil {
		s.log.LogAttrs(ctx, slog.LevelError, "digest claim release failed", logger.Error(err))
	}
}

// Purge deletes sent entries older than the retention window and returns
// the deleted count.
func (s *Scheduler) Purge(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.storage.Purge(ctx, now.Add(-s.cfg.Retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.LogAttrs(ctx, slog.LevelInfo, "digest entries purged", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}
