package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/history"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/scanner"
)

// viewRefreshTimeout bounds a view request that has to wait for a cycle.
const viewRefreshTimeout = 45 * time.Second

// ScanController is the part of the scanner the scan endpoints drive.
type ScanController interface {
	Config() domain.ScanConfig
	SetConfig(ctx context.Context, cfg domain.ScanConfig) error
	Last() (scanner.Report, bool)
	Trigger()
	Request(ctx context.Context) (scanner.Report, error)
	View(ctx context.Context) scanner.View
	Movers(k int) []domain.Mover
}

// ScanHandler serves scan control, configuration and the dashboard view.
type ScanHandler struct {
	scanner ScanController
	logger  *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(s ScanController, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: s, logger: logger}
}

// scanConfigBody is the wire form of domain.ScanConfig. The check interval
// travels in whole seconds.
type scanConfigBody struct {
	MinSpread            int     `json:"min_spread"`
	ViewMinSpread        int     `json:"view_min_spread"`
	AutoAlert            bool    `json:"auto_alert"`
	CheckIntervalSeconds int     `json:"check_interval_seconds"`
	SimilarityThreshold  float64 `json:"similarity_threshold"`
}

func configBody(cfg domain.ScanConfig) scanConfigBody {
	return scanConfigBody{
		MinSpread:            cfg.MinSpread,
		ViewMinSpread:        cfg.ViewMinSpread,
		AutoAlert:            cfg.AutoAlert,
		CheckIntervalSeconds: int(cfg.CheckInterval / time.Second),
		SimilarityThreshold:  cfg.SimilarityThreshold,
	}
}

// scanConfigPatch is a partial update; absent fields keep their value.
type scanConfigPatch struct {
	MinSpread            *int     `json:"min_spread"`
	ViewMinSpread        *int     `json:"view_min_spread"`
	AutoAlert            *bool    `json:"auto_alert"`
	CheckIntervalSeconds *int     `json:"check_interval_seconds"`
	SimilarityThreshold  *float64 `json:"similarity_threshold"`
}

func (p scanConfigPatch) apply(cfg domain.ScanConfig) domain.ScanConfig {
	if p.MinSpread != nil {
		cfg.MinSpread = *p.MinSpread
	}
	if p.ViewMinSpread != nil {
		cfg.ViewMinSpread = *p.ViewMinSpread
	}
	if p.AutoAlert != nil {
		cfg.AutoAlert = *p.AutoAlert
	}
	if p.CheckIntervalSeconds != nil {
		cfg.CheckInterval = time.Duration(*p.CheckIntervalSeconds) * time.Second
	}
	if p.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *p.SimilarityThreshold
	}
	return cfg
}

// Trigger queues a scan cycle and returns immediately.
// POST /api/scan/trigger
func (h *ScanHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	h.scanner.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// GetConfig returns the live scan configuration.
// GET /api/scan/config
func (h *ScanHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configBody(h.scanner.Config()))
}

// UpdateConfig applies a partial scan configuration update.
// PUT /api/scan/config
func (h *ScanHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch scanConfigPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg := patch.apply(h.scanner.Config())
	if err := h.scanner.SetConfig(r.Context(), cfg); err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update scan config failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update scan config")
		return
	}
	writeJSON(w, http.StatusOK, configBody(cfg))
}

// View returns the dashboard built from the latest cycle. When no cycle has
// completed yet, or refresh=true is given, it runs one first.
// GET /api/view?refresh=true
func (h *ScanHandler) View(w http.ResponseWriter, r *http.Request) {
	_, ok := h.scanner.Last()
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if !ok || refresh {
		ctx, cancel := context.WithTimeout(r.Context(), viewRefreshTimeout)
		_, err := h.scanner.Request(ctx)
		cancel()
		if err != nil && !errors.Is(err, domain.ErrLockHeld) {
			h.logger.WarnContext(r.Context(), "handler: view refresh failed",
				slog.String("error", err.Error()),
			)
			if _, ok := h.scanner.Last(); !ok {
				writeError(w, http.StatusServiceUnavailable, "no scan available yet")
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, h.scanner.View(r.Context()))
}

// Movers returns the instruments with the largest latest price change.
// GET /api/movers?k=5
func (h *ScanHandler) Movers(w http.ResponseWriter, r *http.Request) {
	k := history.DefaultTopMovers
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "k must be 1-50")
			return
		}
		k = n
	}
	movers := h.scanner.Movers(k)
	if movers == nil {
		movers = []domain.Mover{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"movers": movers})
}
