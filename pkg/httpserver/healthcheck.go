package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/notifykit/notifykit/pkg/logger"
)

// CheckFunc reports whether one backing dependency is reachable.
type CheckFunc func(context.Context) error

// HealthCheckHandler serves liveness and readiness probes from a single
// endpoint. Without checks it answers 200 "ALIVE". With checks it runs
// each in order and answers 200 "READY", or 500 "NOT_READY" as soon as
// one fails.
func HealthCheckHandler(ctx context.Context, log *slog.Logger, checks ...CheckFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, body := http.StatusOK, "READY"
		if len(checks) == 0 {
			body = "ALIVE"
		}
		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
				status, body = http.StatusInternalServerError, "NOT_READY"
				break
			}
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
