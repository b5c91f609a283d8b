package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// MarketLookup resolves single-instrument detail views.
type MarketLookup interface {
	Kalshi(ctx context.Context, ticker string) (domain.MarketDetail, error)
	Polymarket(ctx context.Context, slug string) (domain.MarketDetail, error)
}

// MarketHandler serves market detail lookups on both venues.
type MarketHandler struct {
	markets MarketLookup
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketLookup, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// GetKalshi returns a Kalshi market by ticker.
// GET /api/markets/kalshi/{ticker}
func (h *MarketHandler) GetKalshi(w http.ResponseWriter, r *http.Request) {
	ticker := pathParam(r, "ticker")
	detail, err := h.markets.Kalshi(r.Context(), ticker)
	h.respond(w, r, "kalshi", ticker, detail, err)
}

// GetPolymarket returns a Polymarket market by slug.
// GET /api/markets/poly/{slug}
func (h *MarketHandler) GetPolymarket(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	detail, err := h.markets.Polymarket(r.Context(), slug)
	h.respond(w, r, "polymarket", slug, detail, err)
}

func (h *MarketHandler) respond(w http.ResponseWriter, r *http.Request, venue, id string, detail domain.MarketDetail, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, detail)
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: get market failed",
		slog.String("venue", venue),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadGateway, "failed to fetch market")
}
