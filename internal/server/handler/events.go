package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

var streamIDPattern = regexp.MustCompile(`^(0|\d+-\d+)$`)

// EventHandler replays the durable opportunity stream so a WebSocket client
// can catch up on lifecycle events it missed while disconnected.
type EventHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(bus domain.SignalBus, logger *slog.Logger) *EventHandler {
	return &EventHandler{bus: bus, logger: logger}
}

type streamEvent struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// List returns stream entries after the given id, oldest first. last_id is
// the cursor for the next call.
// GET /api/events?after=1772366400000-0000000004&limit=50
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	if !streamIDPattern.MatchString(after) {
		writeError(w, http.StatusBadRequest, "after must be a stream id")
		return
	}

	msgs, err := h.bus.StreamRead(r.Context(), domain.StreamOpportunities, after, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read event stream failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	events := make([]streamEvent, 0, len(msgs))
	lastID := after
	for _, m := range msgs {
		lastID = m.ID
		if !json.Valid(m.Payload) {
			continue
		}
		events = append(events, streamEvent{ID: m.ID, Event: m.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "last_id": lastID})
}
