package notifier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStream(t *testing.T) {
	env := newEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(ctx)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("X-Tenant-ID", "tenant-1")

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		env.router.ServeHTTP(rec, req)
	}()

	// Wait for the connection to register, then push an envelope at it.
	require.Eventually(t, func() bool {
		return env.reg.Len() == 1
	}, time.Second, 5*time.Millisecond)

	names := env.reg.Resolve("tenant-1", "user-1")
	require.Len(t, names, 1)
	require.NoError(t, env.reg.PublishTo(context.Background(), names[0], []byte(`{"event":"order.shipped"}`)))

	// Give the handler a chance to drain the subscription and emit at
	// least one heartbeat before tearing the stream down.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream handler did not exit after context cancel")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: heartbeat")
	assert.Contains(t, body, "event: notification\ndata: {\"event\":\"order.shipped\"}")

	assert.Equal(t, 0, env.reg.Len(), "connection should unregister on close")
}

func TestHandleStream_RequiresIdentity(t *testing.T) {
	env := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "event: connected"))
}
