package registry

import "errors"

var (
	// ErrDeadConnection is returned when a publish targets an unknown or
	// expired connection. Callers treat it as a soft failure.
	ErrDeadConnection = errors.New("registry: connection is dead or unknown")
	// ErrPublisherClosed is returned when publishing through a closed
	// publisher.
	ErrPublisherClosed = errors.New("registry: publisher is closed")
)
