package dispatch

import (
	"context"
	"fmt"
)

// TenantConfig resolves per-tenant channel enablement. An error means the
// tenant cannot be resolved at all and fails the dispatch as a
// configuration error.
type TenantConfig interface {
	// EnabledChannels returns the tenant's channel switches. Channels
	// absent from the map are enabled; an explicit false disables.
	EnabledChannels(ctx context.Context, tenantID string) (map[string]bool, error)
}

// AllowAllTenants enables every channel for every tenant. Useful for
// single-tenant deployments and tests.
type AllowAllTenants struct{}

func (AllowAllTenants) EnabledChannels(context.Context, string) (map[string]bool, error) {
	return nil, nil
}

// StaticTenantConfig serves channel switches from a fixed map keyed by
// tenant id. Unknown tenants resolve with everything enabled.
type StaticTenantConfig map[string]map[string]bool

func (s StaticTenantConfig) EnabledChannels(_ context.Context, tenantID string) (map[string]bool, error) {
	return s[tenantID], nil
}

// FallbackPolicy decides which channel covers for a primary channel that
// failed or, for realtime, found nobody listening.
type FallbackPolicy interface {
	// Fallback returns the fallback channel for the given primary and
	// whether one exists.
	Fallback(primary string) (string, bool)
}

// FallbackMap is a FallbackPolicy backed by a map of primary to fallback
// channel names.
type FallbackMap map[string]string

func (m FallbackMap) Fallback(primary string) (string, bool) {
	fb, ok := m[primary]
	return fb, ok
}

// NoFallback disables fallback entirely.
type NoFallback struct{}

func (NoFallback) Fallback(string) (string, bool) { return "", false }

// PayloadKeys is the closed set of recognized payload keys per event.
// Events without an entry accept any payload; events with one reject
// dispatches carrying unrecognized keys at the boundary, before anything
// is rendered or recorded.
type PayloadKeys map[string][]string

func (p PayloadKeys) check(event string, payload map[string]any) error {
	keys, ok := p[event]
	if !ok {
		return nil
	}
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		allowed[k] = struct{}{}
	}
	for k := range payload {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%w: unrecognized payload key %q for event %s", ErrConfiguration, k, event)
		}
	}
	return nil
}
