package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/pkg/channels"
	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/monitor"
	"github.com/notifykit/notifykit/pkg/render"
	"github.com/notifykit/notifykit/pkg/templatecache"
)

// DispatchRequest describes one notification to deliver.
type DispatchRequest struct {
	// NotificationID is optional; a new id is minted when empty. Callers
	// retrying a failed dispatch pass the same id again.
	NotificationID string

	Event    string
	UserID   string
	TenantID string
	Email    string
	Phone    string
	Groups   []string
	Locale   string
	Payload  map[string]any
	Priority Priority
	Channels []string
}

// Receipt is the aggregated outcome of one dispatch. Delivered is true when
// at least one channel delivered (directly or via fallback), or when the
// request named no channels at all.
type Receipt struct {
	NotificationID string           `json:"notification_id"`
	Delivered      bool             `json:"delivered"`
	Records        []DeliveryRecord `json:"records"`
}

// Dispatcher renders and delivers notifications across channel backends.
type Dispatcher struct {
	renderer *render.Registry
	cache    *templatecache.Cache
	tenants  TenantConfig
	backends map[string]channels.Backend
	fallback FallbackPolicy
	schema   PayloadKeys
	mon      *monitor.Monitor
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMonitor wires dispatch and per-channel metrics into mon.
func WithMonitor(mon *monitor.Monitor) Option {
	return func(d *Dispatcher) {
		if mon != nil {
			d.mon = mon
		}
	}
}

// WithFallbackPolicy replaces the default policy (realtime falls back to
// email).
func WithFallbackPolicy(policy FallbackPolicy) Option {
	return func(d *Dispatcher) {
		if policy != nil {
			d.fallback = policy
		}
	}
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithPayloadKeys installs the per-event payload key allowlist. Events
// not listed stay open.
func WithPayloadKeys(schema PayloadKeys) Option {
	return func(d *Dispatcher) {
		d.schema = schema
	}
}

// New creates a dispatcher over the given backends. Every backend is
// wrapped with panic recovery; a panicking backend yields a failed record,
// not a crashed worker.
func New(renderer *render.Registry, cache *templatecache.Cache, tenants TenantConfig, backendList []channels.Backend, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		renderer: renderer,
		cache:    cache,
		tenants:  tenants,
		backends: make(map[string]channels.Backend, len(backendList)),
		fallback: FallbackMap{channels.Realtime: channels.Email},
		mon:      monitor.New(),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, b := range backendList {
		d.backends[b.Name()] = channels.Guard(b, d.log)
	}
	return d
}

// Dispatch delivers one notification. Configuration errors (unknown tenant
// or channel) fail before anything is recorded. Render errors skip the
// affected channel and surface in the returned error while the remaining
// channels still deliver; the receipt is valid whenever it is non-nil.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*Receipt, error) {
	start := d.now()
	d.mon.Counter("dispatch.total").Inc()

	if err := d.validate(ctx, &req); err != nil {
		d.mon.Counter("dispatch.config_error").Inc()
		return nil, err
	}

	receipt := &Receipt{NotificationID: req.NotificationID}

	if len(req.Channels) == 0 {
		// Nothing to do is not a failure.
		receipt.Delivered = true
		return receipt, nil
	}

	enabled, err := d.tenants.EnabledChannels(ctx, req.TenantID)
	if err != nil {
		d.mon.Counter("dispatch.config_error").Inc()
		return nil, fmt.Errorf("%w: resolve tenant %s: %v", ErrConfiguration, req.TenantID, err)
	}

	target := d.target(req)
	var renderErrs []error

	for _, name := range req.Channels {
		if on, present := enabled[name]; present && !on {
			rec := newRecord(name, d.now())
			_ = rec.transition(StatusSkipped, d.now())
			receipt.Records = append(receipt.Records, *rec)
			d.mon.Counter("channel." + name + ".skipped").Inc()
			continue
		}

		rendered, err := d.render(ctx, req, name)
		if err != nil {
			renderErrs = append(renderErrs, fmt.Errorf("%w: channel %s: %v", ErrRender, name, err))
			d.mon.Counter("channel." + name + ".render_error").Inc()
			continue
		}

		rec := d.deliver(ctx, name, rendered, target)

		var fbRec *DeliveryRecord
		if fb, ok := d.fallbackFor(name, rec, enabled, req.Channels); ok {
			fbRec = d.runFallback(ctx, req, fb, rec, target)
		}
		receipt.Records = append(receipt.Records, *rec)
		if fbRec != nil {
			receipt.Records = append(receipt.Records, *fbRec)
		}
	}

	for _, rec := range receipt.Records {
		if rec.Delivered() {
			receipt.Delivered = true
			break
		}
	}

	d.mon.Timer("dispatch").ObserveSince(start)
	if receipt.Delivered {
		d.mon.Counter("dispatch.success").Inc()
	} else {
		d.mon.Counter("dispatch.failure").Inc()
	}

	d.log.LogAttrs(ctx, slog.LevelInfo, "dispatch finished",
		logger.NotificationID(req.NotificationID),
		logger.Event(req.Event),
		logger.Tenant(req.TenantID),
		slog.Bool("delivered", receipt.Delivered),
		slog.Int("records", len(receipt.Records)),
	)

	return receipt, errors.Join(renderErrs...)
}

// Validate runs the same fail-fast configuration checks Dispatch performs,
// without delivering: unknown channels, unresolvable tenant or recipient,
// payload keys outside the event's allowlist. The request is normalized in
// place (id minted, locale canonicalized). Callers deferring a request for
// later delivery validate it up front so a bad request fails at the
// boundary, not at flush time.
func (d *Dispatcher) Validate(ctx context.Context, req *DispatchRequest) error {
	return d.validate(ctx, req)
}

// validate fails fast on configuration faults and fills in defaults.
// Called before any record exists, so a failure here records nothing.
func (d *Dispatcher) validate(_ context.Context, req *DispatchRequest) error {
	if req.Event == "" {
		return fmt.Errorf("%w: empty event", ErrConfiguration)
	}
	if req.TenantID == "" {
		return fmt.Errorf("%w: unresolvable tenant", ErrConfiguration)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: unresolvable recipient", ErrConfiguration)
	}
	for _, name := range req.Channels {
		if _, ok := d.backends[name]; !ok {
			return fmt.Errorf("%w: unknown channel %q", ErrConfiguration, name)
		}
	}
	if err := d.schema.check(req.Event, req.Payload); err != nil {
		return err
	}
	if req.NotificationID == "" {
		req.NotificationID = uuid.NewString()
	}
	if req.Priority == "" {
		req.Priority = PriorityNormal
	}
	req.Locale = d.renderer.Locale(req.Locale)
	return nil
}

func (d *Dispatcher) render(ctx context.Context, req DispatchRequest, channel string) (render.Rendered, error) {
	key := templatecache.Key{
		Event:    req.Event,
		Channel:  channel,
		TenantID: req.TenantID,
		Locale:   req.Locale,
		Version:  d.renderer.Version(req.Event),
		Context:  req.Payload,
	}
	return d.cache.GetOrRender(ctx, key, func() (render.Rendered, error) {
		return d.renderer.Render(req.Event, req.Locale, req.Payload)
	})
}

func (d *Dispatcher) target(req DispatchRequest) channels.Target {
	return channels.Target{
		UserID:         req.UserID,
		TenantID:       req.TenantID,
		Email:          req.Email,
		Phone:          req.Phone,
		Groups:         req.Groups,
		NotificationID: req.NotificationID,
		Event:          req.Event,
		Payload:        req.Payload,
	}
}

// deliver runs one backend attempt and returns the resulting record.
func (d *Dispatcher) deliver(ctx context.Context, name string, rendered render.Rendered, target channels.Target) *DeliveryRecord {
	rec := newRecord(name, d.now())
	backend := d.backends[name]

	attemptStart := d.now()
	res := backend.Send(ctx, rendered, target)
	d.mon.Timer("channel." + name).Observe(d.now().Sub(attemptStart))

	if res.Success {
		_ = rec.transition(StatusDelivered, d.now())
		d.mon.Counter("channel." + name + ".success").Inc()
	} else {
		_ = rec.transition(StatusFailed, d.now())
		rec.Error = res.Message
		d.mon.Counter("channel." + name + ".failure").Inc()
		d.log.LogAttrs(ctx, slog.LevelWarn, "channel delivery failed",
			logger.Channel(name),
			logger.NotificationID(target.NotificationID),
			slog.String("reason", res.Message),
		)
	}
	rec.meta = res.Metadata
	return rec
}

// fallbackFor decides whether a fallback attempt should run for rec. It
// triggers on a failed attempt, or on a realtime attempt that found no live
// connections. The fallback channel must be known, enabled for the tenant,
// and not already part of the request (it would double-send otherwise).
func (d *Dispatcher) fallbackFor(name string, rec *DeliveryRecord, enabled map[string]bool, requested []string) (string, bool) {
	noAudience := name == channels.Realtime && rec.Status == StatusDelivered && rec.meta["connections"] == "0"
	if rec.Status != StatusFailed && !noAudience {
		return "", false
	}

	fb, ok := d.fallback.Fallback(name)
	if !ok {
		return "", false
	}
	if _, known := d.backends[fb]; !known {
		return "", false
	}
	if on, present := enabled[fb]; present && !on {
		return "", false
	}
	for _, c := range requested {
		if c == fb {
			return "", false
		}
	}
	return fb, true
}

// runFallback delivers through the fallback channel and, when it delivers,
// marks a failed primary record as covered by fallback. The fallback
// attempt gets its own record either way; a render failure on the fallback
// channel produces none.
func (d *Dispatcher) runFallback(ctx context.Context, req DispatchRequest, fb string, primary *DeliveryRecord, target channels.Target) *DeliveryRecord {
	rendered, err := d.render(ctx, req, fb)
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "fallback render failed",
			logger.Channel(fb),
			logger.NotificationID(req.NotificationID),
			logger.Error(err),
		)
		return nil
	}

	rec := d.deliver(ctx, fb, rendered, target)

	if rec.Status == StatusDelivered {
		if primary.Status == StatusFailed {
			_ = primary.transition(StatusFallback, d.now())
		}
		d.mon.Counter("dispatch.fallback").Inc()
	}
	return rec
}
