package handler

import (
	"net/http"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/history"
)

// SeriesSource returns the price history of a key.
type SeriesSource interface {
	Series(key string) []domain.PriceSample
}

// HistoryHandler serves price history series and their sparklines.
type HistoryHandler struct {
	source SeriesSource
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(src SeriesSource) *HistoryHandler {
	return &HistoryHandler{source: src}
}

// Series returns the samples of one history key ("k:<ticker>" or "p:<slug>").
// GET /api/history/{key}
func (h *HistoryHandler) Series(w http.ResponseWriter, r *http.Request) {
	key := pathParam(r, "key")
	series := h.source.Series(key)
	if len(series) == 0 {
		writeError(w, http.StatusNotFound, "no history for "+key)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "samples": series})
}

// Sparkline renders the series of one history key as SVG.
// GET /api/sparkline/{key}
func (h *HistoryHandler) Sparkline(w http.ResponseWriter, r *http.Request) {
	svg := history.Sparkline(h.source.Series(pathParam(r, "key")))
	if svg == "" {
		writeError(w, http.StatusNotFound, "not enough history")
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(svg))
}
