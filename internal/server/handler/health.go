package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/pipeline"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/scanner"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// HealthCheck responds with a simple JSON status indicating the server is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// StatusSource reports the scanner state shown by the status endpoint.
type StatusSource interface {
	Config() domain.ScanConfig
	Last() (scanner.Report, bool)
	Open() []domain.Opportunity
	Tracked() (records, series int)
}

// StatusHandler serves the process status for the dashboard.
type StatusHandler struct {
	mode        string
	startedAt   time.Time
	scanner     StatusSource
	archiveCron string
}

// NewStatusHandler creates a StatusHandler for the given run mode.
func NewStatusHandler(mode string, startedAt time.Time, src StatusSource) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, scanner: src}
}

// WithArchiveSchedule makes the status report the next archive run of cron.
func (h *StatusHandler) WithArchiveSchedule(cron string) *StatusHandler {
	h.archiveCron = cron
	return h
}

type statusResponse struct {
	Mode          string           `json:"mode"`
	StartedAt     time.Time        `json:"started_at"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Config        scanConfigBody   `json:"config"`
	Open          int              `json:"open_opportunities"`
	LedgerRecords int              `json:"ledger_records"`
	TrackedSeries int              `json:"tracked_series"`
	LastScan      *scanner.Summary `json:"last_scan"`
	NextArchiveAt *time.Time       `json:"next_archive_at,omitempty"`
}

// GetStatus responds with the run mode, live scan config and the digest of
// the most recent cycle.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Mode:          h.mode,
		StartedAt:     h.startedAt,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Config:        configBody(h.scanner.Config()),
		Open:          len(h.scanner.Open()),
	}
	resp.LedgerRecords, resp.TrackedSeries = h.scanner.Tracked()
	if rep, ok := h.scanner.Last(); ok {
		sum := rep.Summary()
		resp.LastScan = &sum
	}
	if h.archiveCron != "" {
		if next, err := pipeline.NextRun(h.archiveCron, time.Now()); err == nil {
			resp.NextArchiveAt = &next
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
