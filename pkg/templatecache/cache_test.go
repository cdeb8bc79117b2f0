package templatecache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifykit/notifykit/pkg/render"
	"github.com/notifykit/notifykit/pkg/templatecache"
)

func testKey(n int) templatecache.Key {
	return templatecache.Key{
		Event:   fmt.Sprintf("event.%d", n),
		Channel: "email",
		Locale:  "en",
	}
}

func testValue(n int) render.Rendered {
	return render.Rendered{
		Title: fmt.Sprintf("title %d", n),
		Text:  fmt.Sprintf("text %d", n),
		HTML:  fmt.Sprintf("<p>html %d</p>", n),
	}
}

func TestCache_SetGet(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, templatecache.NoopSharedTier{})
	ctx := context.Background()

	c.Set(ctx, testKey(1), testValue(1))

	got, ok := c.Get(ctx, testKey(1))
	require.True(t, ok)
	assert.Equal(t, testValue(1), got)
}

func TestCache_MissReturnsFalse(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, templatecache.NoopSharedTier{})

	_, ok := c.Get(context.Background(), testKey(99))
	assert.False(t, ok)
}

func TestCache_EvictionBound(t *testing.T) {
	const maxSize = 10
	c := templatecache.New(templatecache.Config{L1Size: maxSize}, templatecache.NoopSharedTier{})
	ctx := context.Background()

	for i := 0; i < maxSize+1; i++ {
		c.Set(ctx, testKey(i), testValue(i))
	}

	assert.LessOrEqual(t, c.Len(), maxSize)

	// The newest entry always survives an eviction round.
	_, ok := c.Get(ctx, testKey(maxSize))
	assert.True(t, ok)
}

func TestCache_EvictsOldestFirst(t *testing.T) {
	now := time.Now()
	clock := &now
	c := templatecache.New(
		templatecache.Config{L1Size: 10},
		templatecache.NoopSharedTier{},
		templatecache.WithClock(func() time.Time { return *clock }),
	)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.Set(ctx, testKey(i), testValue(i))
		later := clock.Add(time.Second)
		clock = &later
	}
	c.Set(ctx, testKey(10), testValue(10))

	// The two oldest entries (20% of 10) are gone, recent ones remain.
	_, ok := c.Get(ctx, testKey(0))
	assert.False(t, ok)
	_, ok = c.Get(ctx, testKey(1))
	assert.False(t, ok)
	_, ok = c.Get(ctx, testKey(9))
	assert.True(t, ok)
}

func TestCache_L1TTLExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	c := templatecache.New(
		templatecache.Config{L1Size: 10, L1TTL: time.Minute},
		templatecache.NoopSharedTier{},
		templatecache.WithClock(func() time.Time { return *clock }),
	)
	ctx := context.Background()

	c.Set(ctx, testKey(1), testValue(1))

	later := now.Add(2 * time.Minute)
	clock = &later

	_, ok := c.Get(ctx, testKey(1))
	assert.False(t, ok)
}

func TestCache_GetOrRender(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, templatecache.NoopSharedTier{})
	ctx := context.Background()

	renders := 0
	renderFn := func() (render.Rendered, error) {
		renders++
		return testValue(1), nil
	}

	got, err := c.GetOrRender(ctx, testKey(1), renderFn)
	require.NoError(t, err)
	assert.Equal(t, testValue(1), got)
	assert.Equal(t, 1, renders)

	// Second call is served from cache.
	got, err = c.GetOrRender(ctx, testKey(1), renderFn)
	require.NoError(t, err)
	assert.Equal(t, testValue(1), got)
	assert.Equal(t, 1, renders)
}

func TestCache_GetOrRender_Error(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, templatecache.NoopSharedTier{})

	wantErr := errors.New("render blew up")
	_, err := c.GetOrRender(context.Background(), testKey(1), func() (render.Rendered, error) {
		return render.Rendered{}, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Nothing was cached.
	_, ok := c.Get(context.Background(), testKey(1))
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, templatecache.NoopSharedTier{})
	ctx := context.Background()

	c.Set(ctx, testKey(1), testValue(1))
	c.Invalidate(ctx, testKey(1))

	_, ok := c.Get(ctx, testKey(1))
	assert.False(t, ok)
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, templatecache.NoopSharedTier{})
	ctx := context.Background()

	emailKey := templatecache.Key{Event: "order.shipped", Channel: "email", Locale: "en"}
	smsKey := templatecache.Key{Event: "order.shipped", Channel: "sms", Locale: "en"}
	otherKey := templatecache.Key{Event: "order.cancelled", Channel: "email", Locale: "en"}

	c.Set(ctx, emailKey, testValue(1))
	c.Set(ctx, smsKey, testValue(2))
	c.Set(ctx, otherKey, testValue(3))

	c.InvalidatePrefix(ctx, templatecache.EventPrefix("order.shipped"))

	_, ok := c.Get(ctx, emailKey)
	assert.False(t, ok)
	_, ok = c.Get(ctx, smsKey)
	assert.False(t, ok)
	_, ok = c.Get(ctx, otherKey)
	assert.True(t, ok)
}

// failingTier simulates an unavailable shared tier.
type failingTier struct{}

func (failingTier) Get(context.Context, string) (render.Rendered, time.Duration, bool, error) {
	return render.Rendered{}, 0, false, errors.New("connection refused")
}

func (failingTier) Set(context.Context, string, render.Rendered, time.Duration) error {
	return errors.New("connection refused")
}

func (failingTier) Delete(context.Context, ...string) error { return errors.New("connection refused") }

func (failingTier) DeletePrefix(context.Context, string) error {
	return errors.New("connection refused")
}

func TestCache_SharedTierFailureDegradesToMiss(t *testing.T) {
	c := templatecache.New(templatecache.Config{L1Size: 10}, failingTier{})
	ctx := context.Background()

	// Set succeeds (L1 write works, shared failure swallowed).
	c.Set(ctx, testKey(1), testValue(1))

	// L1 still serves the value.
	got, ok := c.Get(ctx, testKey(1))
	require.True(t, ok)
	assert.Equal(t, testValue(1), got)

	// A pure shared-tier read path never errors, only misses.
	_, ok = c.Get(ctx, testKey(2))
	assert.False(t, ok)
}

func TestCache_MetricsCallback(t *testing.T) {
	hits := map[string]int{}
	misses := map[string]int{}
	c := templatecache.New(
		templatecache.Config{L1Size: 10},
		templatecache.NoopSharedTier{},
		templatecache.WithMetricsCallback(func(tier string, hit bool) {
			if hit {
				hits[tier]++
			} else {
				misses[tier]++
			}
		}),
	)
	ctx := context.Background()

	c.Get(ctx, testKey(1)) // l1 miss + shared miss
	c.Set(ctx, testKey(1), testValue(1))
	c.Get(ctx, testKey(1)) // l1 hit

	assert.Equal(t, 1, hits["l1"])
	assert.Equal(t, 1, misses["l1"])
	assert.Equal(t, 1, misses["shared"])
}
