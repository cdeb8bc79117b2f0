// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, health-check handlers, and structured logging via slog. The
// notifier service runs on it; the server also carries long-lived event
// streams, so write timeouts must be disabled on the stream routes (see
// Config).
//
// Construction goes through New or NewFromConfig with functional options
// (WithAddr, WithShutdownTimeout, WithLogger, ...). Run blocks until the
// context is cancelled or an interrupt/TERM signal arrives, then shuts the
// server down with a deadline. WithStartHook and WithStopHook bracket the
// lifecycle. All public errors wrap the ErrStart / ErrShutdown sentinels
// for errors.Is.
//
//	srv := httpserver.New(
//		httpserver.WithAddr(":8080"),
//		httpserver.WithShutdownTimeout(10*time.Second),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		slog.Error("server stopped", "err", err)
//	}
package httpserver
