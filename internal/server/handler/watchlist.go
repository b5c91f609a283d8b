package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/scanner"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/service"
)

// Watchlist defines the watchlist operations the handler requires.
type Watchlist interface {
	Add(ctx context.Context, item domain.WatchItem) (domain.WatchItem, bool, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.WatchItem, error)
}

// ReportSource exposes the latest cycle report.
type ReportSource interface {
	Last() (scanner.Report, bool)
}

// WatchlistHandler serves the watchlist, enriched with the latest quotes.
type WatchlistHandler struct {
	watchlist Watchlist
	reports   ReportSource
	logger    *slog.Logger
}

// NewWatchlistHandler creates a WatchlistHandler. reports may be nil, in
// which case entries carry no prices.
func NewWatchlistHandler(watchlist Watchlist, reports ReportSource, logger *slog.Logger) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist, reports: reports, logger: logger}
}

type watchItemRequest struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Source string `json:"source"`
	Link   string `json:"link"`
}

// List returns the pinned instruments with their latest price and delta.
// GET /api/watchlist
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.watchlist.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list watchlist failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list watchlist")
		return
	}

	quotes := map[string]domain.Quote{}
	if h.reports != nil {
		if rep, ok := h.reports.Last(); ok {
			for _, q := range slices.Concat(rep.Kalshi, rep.Polymarket) {
				if _, seen := quotes[q.ID]; !seen {
					quotes[q.ID] = q
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": service.Enrich(items, quotes)})
}

// Add pins an instrument. Adding an id that is already pinned is a no-op.
// POST /api/watchlist
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req watchItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	item, added, err := h.watchlist.Add(r.Context(), domain.WatchItem{
		ID:     req.ID,
		Title:  req.Title,
		Source: req.Source,
		Link:   req.Link,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: add watchlist item failed",
			slog.String("id", req.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to add watchlist item")
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{"item": item, "added": added})
}

// Remove unpins an instrument.
// DELETE /api/watchlist/{id}
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.watchlist.Remove(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: remove watchlist item failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to remove watchlist item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "id": id})
}
