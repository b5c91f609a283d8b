package handler

import (
	"context"
	"net/http"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// PortfolioSource returns the portfolio view.
type PortfolioSource interface {
	Get(ctx context.Context) domain.Portfolio
}

// PortfolioHandler serves the Kalshi portfolio.
type PortfolioHandler struct {
	portfolio PortfolioSource
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(src PortfolioSource) *PortfolioHandler {
	return &PortfolioHandler{portfolio: src}
}

// Get returns positions with P&L. The response carries live=false when the
// sample portfolio is shown instead of the account's.
// GET /api/portfolio
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.portfolio.Get(r.Context()))
}
