package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/registry"
	"github.com/notifykit/notifykit/pkg/render"
)

// envelope is the wire format pushed to live connections. Stream consumers
// parse it off the SSE data line.
type envelope struct {
	Event          string         `json:"event"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	HTML           string         `json:"html,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	NotificationID string         `json:"notification_id"`
}

// RealtimeBackend pushes notifications to live connections through the
// connection registry.
type RealtimeBackend struct {
	reg *registry.Registry
	log *slog.Logger
}

// NewRealtimeBackend wraps a connection registry as a delivery backend.
func NewRealtimeBackend(reg *registry.Registry, log *slog.Logger) *RealtimeBackend {
	if log == nil {
		log = slog.Default()
	}
	return &RealtimeBackend{reg: reg, log: log}
}

func (b *RealtimeBackend) Name() string { return Realtime }

// SupportsRetry is false: the set of live connections at retry time is a
// different set, so replaying the send has no defined meaning.
func (b *RealtimeBackend) SupportsRetry() bool { return false }

// Send resolves the target's live connections and publishes the envelope to
// each one. A target with no live connections is a successful no-op, not a
// failure. Individual dead connections are skipped; the send fails only when
// every attempted publish failed.
func (b *RealtimeBackend) Send(ctx context.Context, rendered render.Rendered, target Target) DeliveryResult {
	names := b.reg.Resolve(target.TenantID, target.UserID, target.Groups...)
	if len(names) == 0 {
		res := success("no active channels")
		res.Metadata = map[string]string{"connections": "0"}
		return res
	}

	payload, err := json.Marshal(envelope{
		Event:          target.Event,
		Title:          rendered.Title,
		Message:        rendered.Text,
		HTML:           rendered.HTML,
		Payload:        target.Payload,
		NotificationID: target.NotificationID,
	})
	if err != nil {
		return failure(fmt.Sprintf("encode envelope: %v", err))
	}

	delivered, attempted := 0, 0
	for _, name := range names {
		err := b.reg.PublishTo(ctx, name, payload)
		switch {
		case err == nil:
			attempted++
			delivered++
		case errors.Is(err, registry.ErrDeadConnection):
			// Connection went away between resolve and publish. Skip it.
		default:
			attempted++
			b.log.LogAttrs(ctx, slog.LevelWarn, "realtime publish failed",
				slog.String("channel_name", name),
				logger.NotificationID(target.NotificationID),
				logger.Error(err),
			)
		}
	}

	meta := map[string]string{
		"connections": fmt.Sprintf("%d", delivered),
	}
	switch {
	case attempted == 0:
		// Every resolved connection was already dead. Same outcome as
		// resolving nothing: nobody is listening.
		meta["connections"] = "0"
		return DeliveryResult{Success: true, Message: "no active channels", Metadata: meta}
	case delivered == 0:
		return DeliveryResult{Message: "all publishes failed", Metadata: meta}
	default:
		return DeliveryResult{Success: true, Message: "published", Metadata: meta}
	}
}
