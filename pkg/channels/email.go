package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"github.com/notifykit/notifykit/pkg/email"
	"github.com/notifykit/notifykit/pkg/render"
)

// EmailBackend delivers notifications through a transactional email sender.
// Provider calls run behind a circuit breaker.
type EmailBackend struct {
	sender  email.Sender
	breaker *gobreaker.CircuitBreaker
}

// NewEmailBackend wraps an email sender as a delivery backend.
func NewEmailBackend(sender email.Sender) *EmailBackend {
	return &EmailBackend{
		sender:  sender,
		breaker: newBreaker("email"),
	}
}

func (b *EmailBackend) Name() string { return Email }

// SupportsRetry is true: provider failures are usually transient.
func (b *EmailBackend) SupportsRetry() bool { return true }

func (b *EmailBackend) Send(ctx context.Context, rendered render.Rendered, target Target) DeliveryResult {
	if target.Email == "" {
		return failure(fmt.Sprintf("%v: no email address", ErrMissingAddress))
	}

	msg := email.Message{
		To:       target.Email,
		Subject:  rendered.Title,
		BodyText: rendered.Text,
		BodyHTML: rendered.HTML,
		Tag:      target.Event,
	}

	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.sender.Send(ctx, msg)
	})
	switch {
	case err == nil:
		return success("sent")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return failure(fmt.Sprintf("%v: %v", ErrProviderUnavailable, err))
	default:
		return failure(fmt.Sprintf("send email: %v", err))
	}
}
