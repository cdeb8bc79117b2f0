package notifier

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/notifykit/notifykit/pkg/logger"
	"github.com/notifykit/notifykit/pkg/registry"
)

// handleStream serves the realtime notification stream as server-sent
// events. Each connection gets its own channel name in the registry; the
// envelope published by the realtime backend goes out verbatim as the event
// data. Heartbeats double as liveness Touch calls so the registry's idle
// sweep never reaps an open stream.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	channelName := uuid.NewString()
	sub := s.streams.Subscribe(r.Context(), channelName)
	defer sub.Close()

	s.reg.Register(registry.Connection{
		ChannelName: channelName,
		UserID:      id.UserID,
		TenantID:    id.TenantID,
		Groups:      id.Groups,
	})
	defer s.reg.Unregister(channelName)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"channel\":%q}\n\n", channelName)
	flusher.Flush()

	s.log.DebugContext(r.Context(), "stream opened",
		logger.UserID(id.UserID),
		logger.Tenant(id.TenantID),
	)

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.log.DebugContext(r.Context(), "stream closed", logger.UserID(id.UserID))
			return
		case <-heartbeat.C:
			if !s.reg.Touch(channelName) {
				// Swept as idle; the client should reconnect.
				return
			}
			fmt.Fprint(w, "event: heartbeat\ndata: {}\n\n")
			flusher.Flush()
		case payload, open := <-sub.Messages():
			if !open {
				return
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
