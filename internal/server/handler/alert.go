package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/alert"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// AlertManager defines the alert operations the handler requires.
type AlertManager interface {
	Create(ctx context.Context, req alert.CreateRequest) (domain.Alert, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Alert, error)
}

// AlertHandler serves the alert list and manual price alerts.
type AlertHandler struct {
	alerts AlertManager
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(alerts AlertManager, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{alerts: alerts, logger: logger}
}

// List returns every alert, newest first.
// GET /api/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list alerts failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// Create adds a manual price alert.
// POST /api/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req alert.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := h.alerts.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAlert) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create alert failed",
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Delete removes an alert.
// DELETE /api/alerts/{id}
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.alerts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: delete alert failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete alert")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}
