package channels

import "errors"

var (
	// ErrMissingAddress is returned when the target lacks the addressing
	// field the backend needs (email address, phone number).
	ErrMissingAddress = errors.New("target is missing the address for this channel")

	// ErrProviderUnavailable is returned when the circuit breaker for a
	// provider-facing backend is open.
	ErrProviderUnavailable = errors.New("provider temporarily unavailable")

	// ErrInboxUnavailable is returned when the inbox storage rejects a
	// write or read.
	ErrInboxUnavailable = errors.New("inbox storage unavailable")

	// ErrNotFound is returned when an inbox item lookup matches nothing.
	ErrNotFound = errors.New("inbox item not found")
)
