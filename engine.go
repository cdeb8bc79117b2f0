package notifykit

import (
	"context"
	"log/slog"
	"time"

	"github.com/notifykit/notifykit/pkg/broadcasts"
	"github.com/notifykit/notifykit/pkg/channels"
	"github.com/notifykit/notifykit/pkg/digest"
	"github.com/notifykit/notifykit/pkg/dispatch"
	"github.com/notifykit/notifykit/pkg/email"
	"github.com/notifykit/notifykit/pkg/monitor"
	"github.com/notifykit/notifykit/pkg/registry"
	"github.com/notifykit/notifykit/pkg/render"
	"github.com/notifykit/notifykit/pkg/runner"
	"github.com/notifykit/notifykit/pkg/templatecache"
)

// Config tunes the engine and its background jobs. Nested sections map to
// the corresponding subpackage configs so the whole thing loads in one
// config.Load call.
type Config struct {
	Cache    templatecache.Config
	Registry registry.Config
	Digest   digest.Config

	FlushInterval  time.Duration `env:"ENGINE_FLUSH_INTERVAL" envDefault:"1m"`  // FlushInterval is the digest flush cadence.
	PurgeInterval  time.Duration `env:"ENGINE_PURGE_INTERVAL" envDefault:"1h"`  // PurgeInterval is the digest retention purge cadence.
	ExpireInterval time.Duration `env:"ENGINE_EXPIRE_INTERVAL" envDefault:"1m"` // ExpireInterval is the broadcast expiry sweep cadence.
}

func (c *Config) applyDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Minute
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = time.Hour
	}
	if c.ExpireInterval <= 0 {
		c.ExpireInterval = time.Minute
	}
	if c.Registry.SweepInterval <= 0 {
		c.Registry.SweepInterval = 30 * time.Second
	}
}

// Deps carries the engine's collaborators. Every field is optional: nil
// storages fall back to in-memory implementations, a nil Email or SMS
// provider simply leaves that channel out of the backend set.
type Deps struct {
	Renderer    *render.Registry
	Shared      templatecache.SharedTier
	Streams     registry.Publisher
	Email       email.Sender
	SMS         channels.Gateway
	Inbox       channels.InboxStorage
	Tenants     dispatch.TenantConfig
	PayloadKeys dispatch.PayloadKeys
	Preferences digest.Preferences
	Directory   digest.Directory
	Digests     digest.Storage
	Broadcasts  broadcasts.Storage
}

// Engine is the assembled notification stack.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	mon        *monitor.Monitor
	renderer   *render.Registry
	cache      *templatecache.Cache
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	digests    *digest.Scheduler
	tracker    *broadcasts.Tracker
	announcer  *broadcasts.Publisher
	prefs      digest.Preferences
	fallback   dispatch.FallbackPolicy
	now        func() time.Time

	ownedStreams *registry.MemoryPublisher
	ownedDir     *digest.MemoryDirectory
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared across components.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMonitor sets the performance monitor.
func WithMonitor(mon *monitor.Monitor) Option {
	return func(e *Engine) {
		if mon != nil {
			e.mon = mon
		}
	}
}

// WithFallbackPolicy replaces the dispatcher's default fallback policy.
func WithFallbackPolicy(policy dispatch.FallbackPolicy) Option {
	return func(e *Engine) {
		if policy != nil {
			e.fallback = policy
		}
	}
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New assembles the engine. The realtime channel is always wired; email,
// sms and inapp join the backend set when their provider is present in
// deps.
func New(cfg Config, deps Deps, opts ...Option) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		cfg: cfg,
		log: slog.Default(),
		mon: monitor.New(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.renderer = deps.Renderer
	if e.renderer == nil {
		e.renderer = render.NewRegistry()
	}
	shared := deps.Shared
	if shared == nil {
		shared = templatecache.NoopSharedTier{}
	}
	e.cache = templatecache.New(cfg.Cache, shared,
		templatecache.WithLogger(e.log),
		templatecache.WithMetricsCallback(func(tier string, hit bool) {
			if hit {
				e.mon.Counter("cache." + tier + ".hits").Inc()
			} else {
				e.mon.Counter("cache." + tier + ".misses").Inc()
			}
		}),
	)

	streams := deps.Streams
	if streams == nil {
		e.ownedStreams = registry.NewMemoryPublisher(0)
		streams = e.ownedStreams
	}
	e.reg = registry.New(cfg.Registry, streams, registry.WithLogger(e.log), registry.WithClock(e.now))

	backendList := []channels.Backend{channels.NewRealtimeBackend(e.reg, e.log)}
	if deps.Email != nil {
		backendList = append(backendList, channels.NewEmailBackend(deps.Email))
	}
	if deps.SMS != nil {
		backendList = append(backendList, channels.NewSMSBackend(deps.SMS))
	}
	if deps.Inbox != nil {
		backendList = append(backendList, channels.NewInAppBackend(deps.Inbox))
	}

	tenants := deps.Tenants
	if tenants == nil {
		tenants = dispatch.AllowAllTenants{}
	}
	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(e.log),
		dispatch.WithMonitor(e.mon),
		dispatch.WithClock(e.now),
	}
	if e.fallback != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithFallbackPolicy(e.fallback))
	}
	if deps.PayloadKeys != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithPayloadKeys(deps.PayloadKeys))
	}
	e.dispatcher = dispatch.New(e.renderer, e.cache, tenants, backendList, dispatchOpts...)

	e.prefs = deps.Preferences
	if e.prefs == nil {
		e.prefs = digest.StaticPreferences(digest.FrequencyDisabled)
	}
	digestStore := deps.Digests
	if digestStore == nil {
		digestStore = digest.NewMemoryStorage()
	}
	dir := deps.Directory
	if dir == nil {
		e.ownedDir = digest.NewMemoryDirectory()
		dir = e.ownedDir
	}
	e.digests = digest.New(cfg.Digest, digestStore, e.prefs, dir, e.dispatcher,
		digest.WithLogger(e.log),
		digest.WithMonitor(e.mon),
		digest.WithClock(e.now),
	)

	broadcastStore := deps.Broadcasts
	if broadcastStore == nil {
		broadcastStore = broadcasts.NewMemoryStorage()
	}
	e.tracker = broadcasts.NewTracker(broadcastStore,
		broadcasts.WithTrackerLogger(e.log),
		broadcasts.WithTrackerClock(e.now),
	)
	e.announcer = broadcasts.NewPublisher(broadcastStore, e.dispatcher,
		broadcasts.WithPublisherLogger(e.log),
		broadcasts.WithPublisherClock(e.now),
	)

	return e
}

// Outcome reports what Notify did with a request.
type Outcome struct {
	// Queued means the notification was deferred into the recipient's
	// digest; Receipt is nil.
	Queued bool `json:"queued"`

	Receipt *dispatch.Receipt `json:"receipt,omitempty"`
}

// Notify routes one notification. Normal priority events whose recipient
// has a daily or weekly digest configured for the event are deferred into
// the digest; everything else dispatches immediately. Critical priority
// always bypasses the digest. Configuration checks run up front so a bad
// request fails the same way on both paths.
func (e *Engine) Notify(ctx context.Context, req dispatch.DispatchRequest) (Outcome, error) {
	if err := e.dispatcher.Validate(ctx, &req); err != nil {
		return Outcome{}, err
	}
	if e.ownedDir != nil {
		e.ownedDir.Record(req.TenantID, req.UserID, digest.Address{
			Email:  req.Email,
			Phone:  req.Phone,
			Locale: req.Locale,
		})
	}

	if req.Priority != dispatch.PriorityCritical {
		queued, err := e.digests.Enqueue(ctx, digest.EnqueueRequest{
			TenantID: req.TenantID,
			UserID:   req.UserID,
			GroupKey: req.Event,
			Payload:  req.Payload,
		})
		if err != nil {
			return Outcome{}, err
		}
		if queued {
			e.mon.Counter("notify.queued").Inc()
			return Outcome{Queued: true}, nil
		}
	}

	receipt, err := e.dispatcher.Dispatch(ctx, req)
	return Outcome{Receipt: receipt}, err
}

// Announce publishes a stored broadcast to its recipients and reports how
// many dispatches succeeded.
func (e *Engine) Announce(ctx context.Context, tenantID, broadcastID string, recipients []broadcasts.Recipient) (int, error) {
	return e.announcer.Publish(ctx, tenantID, broadcastID, recipients)
}

// Run starts the background jobs and blocks until ctx is cancelled: digest
// flush and purge, broadcast expiry, and the registry's dead-connection
// sweep.
func (e *Engine) Run(ctx context.Context) {
	jobs := []runner.Job{
		{
			Name:     "digest-flush",
			Interval: e.cfg.FlushInterval,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := e.digests.Flush(ctx, now)
				return err
			},
		},
		{
			Name:     "digest-purge",
			Interval: e.cfg.PurgeInterval,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := e.digests.Purge(ctx, now)
				return err
			},
		},
		{
			Name:     "broadcast-expire",
			Interval: e.cfg.ExpireInterval,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := e.tracker.ExpireSweep(ctx, now)
				return err
			},
		},
		{
			Name:     "registry-sweep",
			Interval: e.cfg.Registry.SweepInterval,
			Run: func(_ context.Context, now time.Time) error {
				e.reg.Sweep(now)
				return nil
			},
		},
	}
	runner.New(jobs, runner.WithLogger(e.log)).Start(ctx)
}

// Dispatcher exposes the wired dispatcher for HTTP services.
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// Registry exposes the connection registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Renderer exposes the template registry for registration at startup.
func (e *Engine) Renderer() *render.Registry { return e.renderer }

// Cache exposes the rendered template cache.
func (e *Engine) Cache() *templatecache.Cache { return e.cache }

// Digests exposes the digest scheduler.
func (e *Engine) Digests() *digest.Scheduler { return e.digests }

// Tracker exposes the broadcast acknowledgement tracker.
func (e *Engine) Tracker() *broadcasts.Tracker { return e.tracker }

// Monitor exposes the performance monitor.
func (e *Engine) Monitor() *monitor.Monitor { return e.mon }

// Close releases resources the engine created itself. Externally supplied
// publishers and storages are the caller's to close.
func (e *Engine) Close() error {
	if e.ownedStreams != nil {
		return e.ownedStreams.Close()
	}
	return nil
}
