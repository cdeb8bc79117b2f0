package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Server runs an http.Server with graceful shutdown on context cancel or
// SIGINT/SIGTERM. Run blocks for the server's whole lifetime, which keeps
// long-lived event-stream responses open until shutdown drains them.
type Server struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	base            *http.Server
	log             *slog.Logger
	startHooks      []func(*slog.Logger)
	stopHooks       []func(*slog.Logger)

	mu       sync.Mutex
	srv      *http.Server
	shutOnce sync.Once
}

// New returns a Server with the given options applied over the defaults
// (addr :8080, 5s shutdown timeout).
func New(opts ...Option) *Server {
	s := &Server{
		addr:            ":8080",
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = discardLogger()
	}
	return s
}

// Run serves handler until ctx is cancelled, a termination signal arrives,
// or the listener fails. Startup failures are wrapped with ErrStart. Run
// may be called once per Server.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	s.srv = s.build(handler)
	srv := s.srv
	s.mu.Unlock()

	for _, h := range s.startHooks {
		h(s.log)
	}
	s.log.Info("http server listening", slog.String("addr", srv.Addr))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var err error
	select {
	case <-ctx.Done():
		_ = s.Shutdown(context.Background())
		err = <-serveErr
	case <-sig:
		_ = s.Shutdown(context.Background())
		err = <-serveErr
	case err = <-serveErr:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrStart, err)
	}
	return nil
}

// build merges the configured timeouts into the underlying http.Server.
// Values already set on a WithServer-supplied instance win.
func (s *Server) build(handler http.Handler) *http.Server {
	srv := s.base
	if srv == nil {
		srv = &http.Server{}
	}
	if srv.Addr == "" {
		srv.Addr = s.addr
	}
	if srv.ReadTimeout == 0 && s.readTimeout != 0 {
		srv.ReadTimeout = s.readTimeout
	}
	if srv.WriteTimeout == 0 && s.writeTimeout != 0 {
		srv.WriteTimeout = s.writeTimeout
	}
	if srv.IdleTimeout == 0 && s.idleTimeout != 0 {
		srv.IdleTimeout = s.idleTimeout
	}
	srv.Handler = handler
	return srv
}

// Shutdown drains in-flight requests within the shutdown timeout. Safe to
// call more than once; later calls are no-ops. Errors are wrapped with
// ErrShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutOnce.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv == nil {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)
		for _, h := range s.stopHooks {
			h(s.log)
		}
		s.log.Info("http server stopped")
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

func discardLogger() *slog.Logger {
	return slog.New(discardHandler{})
}
