package registry

import (
	"context"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/notifykit/notifykit/pkg/logger"
)

// Connection is one live realtime stream. Connections are ephemeral: created
// when a client opens a stream, dropped on Unregister or idle timeout, never
// persisted.
type Connection struct {
	ChannelName string
	UserID      string
	TenantID    string
	Groups      []string
	LastSeen    time.Time
}

func (c Connection) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(c.LastSeen) > timeout
}

// shardCount trades memory for lock granularity; 32 shards keep register and
// publish paths from contending on a single mutex under fan-out load.
const shardCount = 32

type shard struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// Config controls connection liveness.
type Config struct {
	IdleTimeout   time.Duration `env:"REGISTRY_IDLE_TIMEOUT" envDefault:"60s"`  // IdleTimeout is how long a silent connection stays resolvable.
	SweepInterval time.Duration `env:"REGISTRY_SWEEP_INTERVAL" envDefault:"30s"` // SweepInterval is the cadence of the background dead-connection sweep.
}

// Registry tracks live connections and fans payloads out to them. All methods
// are safe for concurrent use; reads and writes may interleave freely, new
// registrations become visible to publishes on the next Resolve.
type Registry struct {
	shards    [shardCount]*shard
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a Registry publishing through the given transport.
func New(cfg Config, publisher Publisher, opts ...Option) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if publisher == nil {
		publisher = NewMemoryPublisher(0)
	}

	r := &Registry{
		publisher: publisher,
		timeout:   cfg.IdleTimeout,
		now:       time.Now,
		log:       slog.Default(),
	}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[string]Connection)}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a connection or refreshes an existing one. Re-registering the
// same channel name updates its liveness timestamp and group membership.
func (r *Registry) Register(conn Connection) {
	conn.LastSeen = r.now()
	s := r.shardFor(conn.ChannelName)
	s.mu.Lock()
	s.conns[conn.ChannelName] = conn
	s.mu.Unlock()
}

// Touch refreshes the liveness timestamp for a connection. Returns false when
// the connection is unknown (already swept or never registered).
func (r *Registry) Touch(channelName string) bool {
	s := r.shardFor(channelName)
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns[channelName]
	if !ok {
		return false
	}
	conn.LastSeen = r.now()
	s.conns[channelName] = conn
	return true
}

// Unregister removes a connection. Takes effect for future publishes only.
func (r *Registry) Unregister(channelName string) {
	s := r.shardFor(channelName)
	s.mu.Lock()
	delete(s.conns, channelName)
	s.mu.Unlock()
}

// Resolve returns the channel names of all live connections matching the
// direct user id or any of the group names, scoped to tenant, de-duplicated.
func (r *Registry) Resolve(tenantID, userID string, groups ...string) []string {
	now := r.now()
	var matched []string

	for _, s := range r.shards {
		s.mu.RLock()
		for name, conn := range s.conns {
			if conn.TenantID != tenantID || conn.expired(now, r.timeout) {
				continue
			}
			if conn.UserID == userID || r.groupsOverlap(conn.Groups, groups) {
				matched = append(matched, name)
			}
		}
		s.mu.RUnlock()
	}

	slices.Sort(matched)
	return slices.Compact(matched)
}

// PublishTo sends a payload to one connection. Publishing to a dead or
// unknown channel is a soft failure: logged, reported as ErrDeadConnection,
// never treated as a transport fault.
func (r *Registry) PublishTo(ctx context.Context, channelName string, payload []byte) error {
	s := r.shardFor(channelName)
	s.mu.RLock()
	conn, ok := s.conns[channelName]
	s.mu.RUnlock()

	if !ok || conn.expired(r.now(), r.timeout) {
		if ok {
			// Lazy cleanup on publish keeps the map tight between sweeps.
			r.Unregister(channelName)
		}
		r.log.LogAttrs(ctx, slog.LevelDebug, "dropping publish to dead connection",
			slog.String("channel_name", channelName),
		)
		return ErrDeadConnection
	}

	if err := r.publisher.Publish(ctx, channelName, payload); err != nil {
		r.log.LogAttrs(ctx, slog.LevelWarn, "publish failed",
			slog.String("channel_name", channelName),
			logger.Error(err),
		)
		return err
	}
	return nil
}

// Sweep removes connections idle past the timeout and reports how many were
// dropped. Safe to call from any goroutine; the runner calls it periodically.
func (r *Registry) Sweep(now time.Time) int {
	removed := 0
	for _, s := range r.shards {
		s.mu.Lock()
		for name, conn := range s.conns {
			if conn.expired(now, r.timeout) {
				delete(s.conns, name)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len reports the number of registered connections, including not yet swept
// expired ones.
func (r *Registry) Len() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.conns)
		s.mu.RUnlock()
	}
	return total
}

func (r *Registry) shardFor(channelName string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(channelName))
	return r.shards[h.Sum32()%shardCount]
}

func (r *Registry) groupsOverlap(connGroups, wanted []string) bool {
	for _, g := range wanted {
		if slices.Contains(connGroups, g) {
			return true
		}
	}
	return false
}
