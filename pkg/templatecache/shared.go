package templatecache

import (
	"context"
	"time"

	"github.com/notifykit/notifykit/pkg/render"
)

// SharedTier is the L2 cache visible to all processes. Implementations may
// block on network I/O; the Cache wraps every call in a short timeout and
// treats any error as a miss, so a tier outage never fails a dispatch.
type SharedTier interface {
	// Get returns the cached value and its remaining TTL.
	Get(ctx context.Context, key string) (render.Rendered, time.Duration, bool, error)

	// Set stores the value with the given TTL.
	Set(ctx context.Context, key string, value render.Rendered, ttl time.Duration) error

	// Delete removes exact keys.
	Delete(ctx context.Context, keys ...string) error

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// NoopSharedTier disables the shared tier for single-process deployments.
type NoopSharedTier struct{}

func (NoopSharedTier) Get(context.Context, string) (render.Rendered, time.Duration, bool, error) {
	return render.Rendered{}, 0, false, nil
}

func (NoopSharedTier) Set(context.Context, string, render.Rendered, time.Duration) error {
	return nil
}

func (NoopSharedTier) Delete(context.Context, ...string) error { return nil }

func (NoopSharedTier) DeletePrefix(context.Context, string) error { return nil }
