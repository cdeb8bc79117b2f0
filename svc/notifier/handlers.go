package notifier

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notifykit/notifykit/pkg/broadcasts"
	"github.com/notifykit/notifykit/pkg/dispatch"
	"github.com/notifykit/notifykit/pkg/logger"
)

// dispatchPayload is the request body of POST /notifications/dispatch.
type dispatchPayload struct {
	Event    string         `json:"event"`
	Payload  map[string]any `json:"payload"`
	Channels []string       `json:"channels"`
	Priority string         `json:"priority,omitempty"`
}

func (p dispatchPayload) validate() error {
	if p.Event == "" {
		return errors.New("event is required")
	}
	switch p.Priority {
	case "", string(dispatch.PriorityNormal), string(dispatch.PriorityCritical):
	default:
		return errors.New("priority must be normal or critical")
	}
	for key := range p.Payload {
		if key == "" {
			return errors.New("payload keys must be non-empty strings")
		}
	}
	return nil
}

func (s *Service) handleDispatch(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	var body dispatchPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.sender.Notify(r.Context(), dispatch.DispatchRequest{
		Event:    body.Event,
		UserID:   id.UserID,
		TenantID: id.TenantID,
		Email:    id.Email,
		Groups:   id.Groups,
		Locale:   id.Locale,
		Payload:  body.Payload,
		Priority: dispatch.Priority(body.Priority),
		Channels: body.Channels,
	})
	switch {
	case errors.Is(err, dispatch.ErrConfiguration):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, dispatch.ErrRender):
		// Partial outcome: some channels may still have delivered.
		writeJSON(w, http.StatusMultiStatus, out)
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "dispatch failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	if out.Queued {
		writeJSON(w, http.StatusAccepted, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())
	broadcastID := chi.URLParam(r, "id")

	ack, err := s.tracker.Acknowledge(r.Context(), id.TenantID, broadcastID, id.UserID, r.URL.Query().Get("channel"))
	switch {
	case errors.Is(err, broadcasts.ErrNotFound):
		writeError(w, http.StatusNotFound, "broadcast not found")
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "acknowledge failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "acknowledge failed")
		return
	}

	writeJSON(w, http.StatusOK, ack)
}

func (s *Service) handlePending(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	gate, err := s.tracker.RequireGate(r.Context(), id.TenantID, id.UserID, id.Roles)
	if err != nil {
		s.log.ErrorContext(r.Context(), "pending lookup failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "pending lookup failed")
		return
	}
	if gate == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"gate": gate})
}

func (s *Service) handleInboxList(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	items, err := s.inbox.List(r.Context(), id.TenantID, id.UserID, s.cfg.InboxPageSize)
	if err != nil {
		s.log.ErrorContext(r.Context(), "inbox list failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "inbox unavailable")
		return
	}

	unread, err := s.inbox.CountUnread(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "inbox unread count failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "inbox unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"unread": unread,
	})
}

func (s *Service) handleInboxMarkRead(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	marked, err := s.inbox.MarkRead(r.Context(), id.TenantID, id.UserID, body.IDs)
	if err != nil {
		s.log.ErrorContext(r.Context(), "inbox mark read failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "inbox unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"marked": marked})
}
