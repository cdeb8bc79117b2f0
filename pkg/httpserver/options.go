package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Server at construction. Options validate eagerly and
// panic on programmer error; misconfiguration is not a runtime condition.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(s *Server) { s.addr = addr }
}

// WithReadTimeout bounds reading the entire request, body included.
func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(s *Server) { s.readTimeout = d }
}

// WithWriteTimeout bounds response writes. Leave unset when the handler
// serves event streams; a fixed write deadline would sever them.
func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(s *Server) { s.writeTimeout = d }
}

// WithIdleTimeout bounds keep-alive waits between requests.
func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(s *Server) { s.idleTimeout = d }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(s *Server) { s.shutdownTimeout = d }
}

// WithServer runs the provided http.Server instance instead of a fresh one.
// Handler and unset timeout fields are filled in; fields already set on the
// instance take precedence over package defaults.
func WithServer(srv *http.Server) Option {
	if srv == nil {
		panic("WithServer: nil server")
	}
	return func(s *Server) { s.base = srv }
}

// WithLogger sets the logger. Without one the server is silent.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithStartHook registers a callback invoked when the server begins
// listening.
func WithStartHook(h func(*slog.Logger)) Option {
	if h == nil {
		panic("WithStartHook: nil hook")
	}
	return func(s *Server) { s.startHooks = append(s.startHooks, h) }
}

// WithStopHook registers a callback invoked after shutdown completes.
func WithStopHook(h func(*slog.Logger)) Option {
	if h == nil {
		panic("WithStopHook: nil hook")
	}
	return func(s *Server) { s.stopHooks = append(s.stopHooks, h) }
}
