package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/notifykit/notifykit/pkg/render"
)

// smsMaxLen is the single-segment GSM message length. Longer bodies are
// truncated rather than split into multipart messages.
const smsMaxLen = 160

// Gateway sends one SMS message through a provider.
type Gateway interface {
	Send(ctx context.Context, to, body string) error
}

// SMSBackend delivers the plain-text rendering of a notification as an SMS.
type SMSBackend struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// NewSMSBackend wraps an SMS gateway as a delivery backend.
func NewSMSBackend(gateway Gateway) *SMSBackend {
	return &SMSBackend{
		gateway: gateway,
		breaker: newBreaker("sms"),
	}
}

func (b *SMSBackend) Name() string { return SMS }

// SupportsRetry is true: gateway failures are usually transient.
func (b *SMSBackend) SupportsRetry() bool { return true }

func (b *SMSBackend) Send(ctx context.Context, rendered render.Rendered, target Target) DeliveryResult {
	if target.Phone == "" {
		return failure(fmt.Sprintf("%v: no phone number", ErrMissingAddress))
	}

	body := rendered.Text
	if body == "" {
		body = rendered.Title
	}
	truncated := false
	if runes := []rune(body); len(runes) > smsMaxLen {
		body = string(runes[:smsMaxLen])
		truncated = true
	}

	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.gateway.Send(ctx, target.Phone, body)
	})
	switch {
	case err == nil:
		res := success("sent")
		if truncated {
			res.Metadata = map[string]string{"truncated": "true"}
		}
		return res
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return failure(fmt.Sprintf("%v: %v", ErrProviderUnavailable, err))
	default:
		return failure(fmt.Sprintf("send sms: %v", err))
	}
}
