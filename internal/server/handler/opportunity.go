package handler

import (
	"net/http"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// LedgerReader is the read side of the opportunity ledger.
type LedgerReader interface {
	Ledger(status domain.OpportunityStatus, limit int) []domain.Opportunity
	Open() []domain.Opportunity
}

// OpportunityHandler serves the opportunity ledger.
type OpportunityHandler struct {
	ledger LedgerReader
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(ledger LedgerReader) *OpportunityHandler {
	return &OpportunityHandler{ledger: ledger}
}

type opportunityListResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
	Count         int                  `json:"count"`
}

// List returns ledger records, most recent detection first.
// GET /api/opportunities?status=open|closed&limit=50
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.OpportunityStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.OpportunityOpen, domain.OpportunityClosed:
	default:
		writeError(w, http.StatusBadRequest, "status must be open or closed")
		return
	}

	records := h.ledger.Ledger(status, parseLimit(r))
	if records == nil {
		records = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, opportunityListResponse{Opportunities: records, Count: len(records)})
}

// ListOpen returns every open opportunity, oldest detection first.
// GET /api/opportunities/open
func (h *OpportunityHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	records := h.ledger.Open()
	if records == nil {
		records = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, opportunityListResponse{Opportunities: records, Count: len(records)})
}
