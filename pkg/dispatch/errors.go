package dispatch

import "errors"

var (
	// ErrConfiguration marks an unresolvable tenant, recipient, or channel.
	// The whole dispatch fails immediately and nothing is recorded.
	ErrConfiguration = errors.New("dispatch: configuration error")

	// ErrRender marks a template that is missing or failed to render for a
	// channel. Non-retryable; the affected channel gets no delivery record.
	ErrRender = errors.New("dispatch: render error")

	// ErrInvalidTransition is returned when a delivery record is moved out
	// of a terminal status.
	ErrInvalidTransition = errors.New("dispatch: invalid status transition")
)
