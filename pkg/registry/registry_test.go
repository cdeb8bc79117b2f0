package registry_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/registry"
)

func newRegistry(opts ...registry.Option) (*registry.Registry, *registry.MemoryPublisher) {
	pub := registry.NewMemoryPublisher(16)
	return registry.New(registry.Config{IdleTimeout: time.Minute}, pub, opts...), pub
}

func TestRegistry_RegisterResolve(t *testing.T) {
	r, _ := newRegistry()

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1"})
	r.Register(registry.Connection{ChannelName: "c2", UserID: "u1", TenantID: "t1"})
	r.Register(registry.Connection{ChannelName: "c3", UserID: "u2", TenantID: "t1"})

	assert.ElementsMatch(t, []string{"c1", "c2"}, r.Resolve("t1", "u1"))
	assert.ElementsMatch(t, []string{"c3"}, r.Resolve("t1", "u2"))
}

func TestRegistry_ResolveIsTenantScoped(t *testing.T) {
	r, _ := newRegistry()

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1"})
	r.Register(registry.Connection{ChannelName: "c2", UserID: "u1", TenantID: "t2"})

	assert.Equal(t, []string{"c1"}, r.Resolve("t1", "u1"))
}

func TestRegistry_ResolveGroups(t *testing.T) {
	r, _ := newRegistry()

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1", Groups: []string{"support"}})
	r.Register(registry.Connection{ChannelName: "c2", UserID: "u2", TenantID: "t1", Groups: []string{"support", "admins"}})
	r.Register(registry.Connection{ChannelName: "c3", UserID: "u3", TenantID: "t1"})

	// Direct user match unions with group matches, de-duplicated.
	got := r.Resolve("t1", "u3", "support")
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, got)
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r, _ := newRegistry()

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1"})
	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1", Groups: []string{"g"}})

	assert.Equal(t, 1, r.Len())
	assert.ElementsMatch(t, []string{"c1"}, r.Resolve("t1", "missing", "g"))
}

func TestRegistry_Unregister(t *testing.T) {
	r, _ := newRegistry()

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1"})
	r.Unregister("c1")

	assert.Empty(t, r.Resolve("t1", "u1"))
	assert.Zero(t, r.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Now()
	clock := now
	var mu sync.Mutex
	r := registry.New(registry.Config{IdleTimeout: time.Minute}, registry.NewMemoryPublisher(16),
		registry.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return clock
		}))

	r.Register(registry.Connection{ChannelName: "stale", UserID: "u1", TenantID: "t1"})

	mu.Lock()
	clock = now.Add(30 * time.Second)
	mu.Unlock()
	r.Register(registry.Connection{ChannelName: "fresh", UserID: "u1", TenantID: "t1"})

	removed := r.Sweep(now.Add(90 * time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"fresh"}, r.Resolve("t1", "u1"))
}

func TestRegistry_TouchExtendsLiveness(t *testing.T) {
	now := time.Now()
	clock := now
	var mu sync.Mutex
	r := registry.New(registry.Config{IdleTimeout: time.Minute}, registry.NewMemoryPublisher(16),
		registry.WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return clock
		}))

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1"})

	mu.Lock()
	clock = now.Add(45 * time.Second)
	mu.Unlock()
	require.True(t, r.Touch("c1"))

	// Without the touch the connection would be expired by now.
	mu.Lock()
	clock = now.Add(90 * time.Second)
	mu.Unlock()
	assert.Equal(t, []string{"c1"}, r.Resolve("t1", "u1"))

	assert.False(t, r.Touch("unknown"))
}

func TestRegistry_PublishTo(t *testing.T) {
	r, pub := newRegistry()
	ctx := context.Background()

	r.Register(registry.Connection{ChannelName: "c1", UserID: "u1", TenantID: "t1"})
	sub := pub.Subscribe(context.Background(), "c1")
	defer sub.Close()

	require.NoError(t, r.PublishTo(ctx, "c1", []byte(`{"event":"x"}`)))

	select {
	case msg := <-sub.Messages():
		assert.JSONEq(t, `{"event":"x"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("expected a published message")
	}
}

func TestRegistry_PublishToDeadConnection(t *testing.T) {
	r, _ := newRegistry()

	err := r.PublishTo(context.Background(), "never-registered", []byte("x"))
	assert.ErrorIs(t, err, registry.ErrDeadConnection)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, _ := newRegistry()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(3)
		go func() {
			defer wg.Done()
			r.Register(registry.Connection{
				ChannelName: fmt.Sprintf("c%d", i),
				UserID:      fmt.Sprintf("u%d", i%5),
				TenantID:    "t1",
			})
		}()
		go func() {
			defer wg.Done()
			r.Resolve("t1", fmt.Sprintf("u%d", i%5))
		}()
		go func() {
			defer wg.Done()
			_ = r.PublishTo(ctx, fmt.Sprintf("c%d", i), []byte("payload"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
}
