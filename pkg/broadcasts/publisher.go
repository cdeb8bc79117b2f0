package broadcasts

import (
	"context"
	"log/slog"
	"time"

	"github.com/notifykit/notifykit/pkg/dispatch"
	"github.com/notifykit/notifykit/pkg/logger"
)

// Recipient is one delivery target of a broadcast fan-out.
type Recipient struct {
	UserID string
	Email  string
	Phone  string
	Locale string
	Groups []string
}

// Sender is the dispatch surface the publisher needs. *dispatch.Dispatcher
// satisfies it.
type Sender interface {
	Dispatch(ctx context.Context, req dispatch.DispatchRequest) (*dispatch.Receipt, error)
}

// Publisher fans one broadcast out to many recipients through the
// dispatcher, one independent dispatch per recipient.
type Publisher struct {
	storage Storage
	sender  Sender
	log     *slog.Logger
	now     func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherLogger sets the logger.
func WithPublisherLogger(log *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if log != nil {
			p.log = log
		}
	}
}

// WithPublisherClock overrides the time source. Test hook.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a broadcast publisher.
func NewPublisher(storage Storage, sender Sender, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		storage: storage,
		sender:  sender,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers the broadcast to every recipient and returns how many
// dispatches delivered. A broadcast outside its active window delivers to
// nobody. Per-recipient failures are logged and skipped; one recipient's
// failure never blocks the rest.
func (p *Publisher) Publish(ctx context.Context, tenantID, broadcastID string, recipients []Recipient) (int, error) {
	msg, err := p.storage.GetMessage(ctx, tenantID, broadcastID)
	if err != nil {
		return 0, err
	}
	if !msg.ActiveAt(p.now()) {
		p.log.LogAttrs(ctx, slog.LevelInfo, "broadcast outside active window, skipping",
			logger.Tenant(tenantID),
			logger.BroadcastID(broadcastID),
		)
		return 0, nil
	}

	payload := map[string]any{
		"broadcast_id": msg.ID,
		"title":        msg.Title,
		"body":         msg.Body,
		"blocking":     msg.Blocking,
		"pinned":       msg.Pinned,
	}

	delivered := 0
	for _, r := range recipients {
		receipt, err := p.sender.Dispatch(ctx, dispatch.DispatchRequest{
			Event:    msg.Event,
			UserID:   r.UserID,
			TenantID: tenantID,
			Email:    r.Email,
			Phone:    r.Phone,
			Groups:   r.Groups,
			Locale:   r.Locale,
			Priority: dispatch.PriorityCritical,
			Channels: msg.Channels,
			Payload:  payload,
		})
		if err != nil || !receipt.Delivered {
			p.log.LogAttrs(ctx, slog.LevelWarn, "broadcast delivery failed",
				logger.Tenant(tenantID),
				logger.BroadcastID(broadcastID),
				logger.UserID(r.UserID),
				logger.Error(err),
			)
			continue
		}
		delivered++
	}

	p.log.LogAttrs(ctx, slog.LevelInfo, "broadcast published",
		logger.Tenant(tenantID),
		logger.BroadcastID(broadcastID),
		slog.Int("recipients", len(recipients)),
		slog.Int("delivered", delivered),
	)
	return delivered, nil
}
