package templatecache

import (
	"context"
	"log/slog"
	"time"

	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/render"
)

// Config controls the two cache tiers.
type Config struct {
	L1Size        int           `env:"TEMPLATE_CACHE_L1_SIZE" envDefault:"1000"`       // L1Size bounds the in-process tier.
	L1TTL         time.Duration `env:"TEMPLATE_CACHE_L1_TTL" envDefault:"5m"`          // L1TTL is the in-process entry lifetime.
	SharedTTL     time.Duration `env:"TEMPLATE_CACHE_SHARED_TTL" envDefault:"1h"`      // SharedTTL is the shared tier entry lifetime.
	SharedTimeout time.Duration `env:"TEMPLATE_CACHE_SHARED_TIMEOUT" envDefault:"250ms"` // SharedTimeout bounds each shared tier call.
}

// MetricsCallback observes cache lookups per tier ("l1" or "shared").
type MetricsCallback func(tier string, hit bool)

// Cache is the two-tier rendered template cache. The cache is a pure memo:
// a shared tier outage degrades lookups to misses and never fails a request.
type Cache struct {
	l1            *l1Cache
	shared        SharedTier
	l1TTL         time.Duration
	sharedTTL     time.Duration
	sharedTimeout time.Duration
	metrics       MetricsCallback
	log           *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for degraded shared tier operations.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetricsCallback registers a per-lookup observer.
func WithMetricsCallback(cb MetricsCallback) Option {
	return func(c *Cache) { c.metrics = cb }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.l1.now = now }
}

// New creates a Cache over the given shared tier. Pass NoopSharedTier{} for
// single-process deployments.
func New(cfg Config, shared SharedTier, opts ...Option) *Cache {
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = 5 * time.Minute
	}
	if cfg.SharedTTL <= 0 {
		cfg.SharedTTL = time.Hour
	}
	if cfg.SharedTimeout <= 0 {
		cfg.SharedTimeout = 250 * time.Millisecond
	}
	if shared == nil {
		shared = NoopSharedTier{}
	}

	c := &Cache{
		l1:            newL1Cache(cfg.L1Size, nil),
		shared:        shared,
		l1TTL:         cfg.L1TTL,
		sharedTTL:     cfg.SharedTTL,
		sharedTimeout: cfg.SharedTimeout,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get checks L1 first, then the shared tier. A shared hit is promoted into
// L1 with its remaining TTL capped at the L1 TTL, so a promoted entry never
// outlives its shared copy.
func (c *Cache) Get(ctx context.Context, key Key) (render.Rendered, bool) {
	keyStr := key.String()

	if value, ok := c.l1.get(keyStr); ok {
		c.observe("l1", true)
		return value, true
	}
	c.observe("l1", false)

	value, remaining, ok, err := c.sharedGet(ctx, keyStr)
	if err != nil {
		c.log.LogAttrs(ctx, slog.LevelDebug, "shared cache tier degraded to miss",
			logger.CacheKey(keyStr),
			logger.Error(err),
		)
		c.observe("shared", false)
		return render.Rendered{}, false
	}
	if !ok {
		c.observe("shared", false)
		return render.Rendered{}, false
	}
	c.observe("shared", true)

	ttl := min(remaining, c.l1TTL)
	if ttl > 0 {
		c.l1.set(keyStr, value, ttl)
	}
	return value, true
}

// Set populates both tiers. Shared tier failures are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key Key, value render.Rendered) {
	keyStr := key.String()
	c.l1.set(keyStr, value, c.l1TTL)

	sctx, cancel := context.WithTimeout(ctx, c.sharedTimeout)
	defer cancel()
	if err := c.shared.Set(sctx, keyStr, value, c.sharedTTL); err != nil {
		c.log.LogAttrs(ctx, slog.LevelDebug, "shared cache tier write failed",
			logger.CacheKey(keyStr),
			logger.Error(err),
		)
	}
}

// GetOrRender returns the cached value for key or renders, caches, and
// returns a fresh one. Render failures pass through unchanged.
func (c *Cache) GetOrRender(ctx context.Context, key Key, renderFn func() (render.Rendered, error)) (render.Rendered, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	value, err := renderFn()
	if err != nil {
		return render.Rendered{}, err
	}

	c.Set(ctx, key, value)
	return value, nil
}

// Invalidate removes one exact key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key Key) {
	keyStr := key.String()
	c.l1.delete(keyStr)

	sctx, cancel := context.WithTimeout(ctx, c.sharedTimeout)
	defer cancel()
	if err := c.shared.Delete(sctx, keyStr); err != nil {
		c.log.LogAttrs(ctx, slog.LevelDebug, "shared cache tier delete failed",
			logger.CacheKey(keyStr),
			logger.Error(err),
		)
	}
}

// InvalidatePrefix removes every key starting with prefix from both tiers.
// Combine with EventPrefix to drop all variants of one event.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	c.l1.deletePrefix(prefix)

	sctx, cancel := context.WithTimeout(ctx, c.sharedTimeout)
	defer cancel()
	if err := c.shared.DeletePrefix(sctx, prefix); err != nil {
		c.log.LogAttrs(ctx, slog.LevelDebug, "shared cache tier prefix delete failed",
			logger.CacheKey(prefix),
			logger.Error(err),
		)
	}
}

// Len reports the current L1 entry count.
func (c *Cache) Len() int {
	return c.l1.len()
}

func (c *Cache) sharedGet(ctx context.Context, key string) (render.Rendered, time.Duration, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, c.sharedTimeout)
	defer cancel()
	return c.shared.Get(sctx, key)
}

func (c *Cache) observe(tier string, hit bool) {
	if c.metrics != nil {
		c.metrics(tier, hit)
	}
}
