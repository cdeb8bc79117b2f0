package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	notifykit "github.com/notifykit/notifykit"
	"github.com/notifykit/notifykit/pkg/broadcasts"
	"github.com/notifykit/notifykit/pkg/channels"
	"github.com/notifykit/notifykit/pkg/dispatch"
	"github.com/notifykit/notifykit/pkg/registry"
)

// Streams is the subscription side of the realtime transport.
// *registry.MemoryPublisher and *registry.RedisPublisher satisfy it.
type Streams interface {
	Subscribe(ctx context.Context, channelName string) registry.Subscriber
}

// Sender routes one notification, either dispatching it immediately or
// deferring it into the recipient's digest. *notifykit.Engine satisfies it.
type Sender interface {
	Notify(ctx context.Context, req dispatch.DispatchRequest) (notifykit.Outcome, error)
}

// Config tunes the service.
type Config struct {
	// HeartbeatInterval is the keep-alive cadence on the event stream.
	HeartbeatInterval time.Duration `env:"STREAM_HEARTBEAT_INTERVAL" envDefault:"30s"`
	// InboxPageSize caps inbox listing.
	InboxPageSize int `env:"INBOX_PAGE_SIZE" envDefault:"50"`
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.InboxPageSize <= 0 {
		c.InboxPageSize = 50
	}
}

// Service wires the engine's components behind HTTP handlers.
type Service struct {
	cfg     Config
	sender  Sender
	reg     *registry.Registry
	streams Streams
	tracker *broadcasts.Tracker
	inbox   channels.InboxStorage
	log     *slog.Logger
}

// New creates the notifier service.
func New(cfg Config, sender Sender, reg *registry.Registry, streams Streams, tracker *broadcasts.Tracker, inbox channels.InboxStorage, log *slog.Logger) *Service {
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		sender:  sender,
		reg:     reg,
		streams: streams,
		tracker: tracker,
		inbox:   inbox,
		log:     log,
	}
}

// Router mounts all service routes.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(IdentityMiddleware)

	r.Post("/notifications/dispatch", s.handleDispatch)
	r.Get("/notifications/stream", s.handleStream)
	r.Get("/notifications/inbox", s.handleInboxList)
	r.Post("/notifications/inbox/read", s.handleInboxMarkRead)

	r.Post("/broadcasts/{id}/acknowledge", s.handleAcknowledge)
	r.Get("/broadcasts/pending", s.handlePending)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
