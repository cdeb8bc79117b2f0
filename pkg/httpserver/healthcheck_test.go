package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notifykit/notifykit/pkg/httpserver"
)

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	serve := func(h http.HandlerFunc) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	t.Run("liveness without checks", func(t *testing.T) {
		rec := serve(httpserver.HealthCheckHandler(context.Background(), log))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("ready when all checks pass", func(t *testing.T) {
		ok := func(context.Context) error { return nil }
		rec := serve(httpserver.HealthCheckHandler(context.Background(), log, ok, ok))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("not ready when any check fails", func(t *testing.T) {
		ok := func(context.Context) error { return nil }
		bad := func(context.Context) error { return errors.New("connection refused") }
		rec := serve(httpserver.HealthCheckHandler(context.Background(), log, ok, bad))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}
