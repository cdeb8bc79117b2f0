package httpserver

import "errors"

var (
	// ErrStart wraps listener and startup failures from Run.
	ErrStart = errors.New("http server failed to start")
	// ErrShutdown wraps failures to drain within the shutdown timeout.
	ErrShutdown = errors.New("http server failed to shut down gracefully")
)
