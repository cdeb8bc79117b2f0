package notifier

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the authenticated caller as asserted by the edge proxy.
type Identity struct {
	UserID   string
	TenantID string
	Email    string
	Roles    []string
	Groups   []string
	Locale   string
}

type identityContextKey struct{}

// SetIdentityToContext stores the caller identity for handler access.
func SetIdentityToContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// GetIdentityFromContext retrieves the caller identity. The second return
// is false when no identity middleware ran.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// IdentityMiddleware reads the trusted identity headers and rejects
// requests missing user or tenant.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:   r.Header.Get("X-User-ID"),
			TenantID: r.Header.Get("X-Tenant-ID"),
			Email:    r.Header.Get("X-User-Email"),
			Roles:    splitHeader(r.Header.Get("X-User-Roles")),
			Groups:   splitHeader(r.Header.Get("X-User-Groups")),
			Locale:   r.Header.Get("Accept-Language"),
		}
		if id.UserID == "" || id.TenantID == "" {
			writeError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(SetIdentityToContext(r.Context(), id)))
	})
}

func splitHeader(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
