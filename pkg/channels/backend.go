package channels

import (
	"context"

	"github.com/notifykit/notifykit/pkg/render"
)

// Channel names understood by the dispatcher. Tenant configuration and
// event definitions refer to backends by these names.
const (
	Realtime = "realtime"
	Email    = "email"
	SMS      = "sms"
	InApp    = "inapp"
)

// Target identifies the recipient of a single delivery attempt along with
// the addressing data each backend needs. A backend reads only the fields
// relevant to its transport and ignores the rest.
type Target struct {
	UserID         string
	TenantID       string
	Email          string
	Phone          string
	Groups         []string
	NotificationID string
	Event          string
	Payload        map[string]any
}

// DeliveryResult is the outcome of one Send call. Message is a short
// human-readable explanation; Metadata carries backend-specific details
// (connection counts, provider ids) that end up on the delivery record.
type DeliveryResult struct {
	Success  bool
	Message  string
	Metadata map[string]string
}

// Backend delivers a rendered notification over one transport.
type Backend interface {
	// Name returns the channel name the backend serves.
	Name() string

	// SupportsRetry reports whether a failed Send may be retried. Backends
	// whose failures are typically transient (provider outages) return
	// true; backends where a retry cannot change the outcome return false.
	SupportsRetry() bool

	// Send attempts a single delivery. It never panics and never retries;
	// all failure detail is carried in the returned DeliveryResult.
	Send(ctx context.Context, rendered render.Rendered, target Target) DeliveryResult
}

func failure(msg string) DeliveryResult {
	return DeliveryResult{Success: false, Message: msg}
}

func success(msg string) DeliveryResult {
	return DeliveryResult{Success: true, Message: msg}
}
