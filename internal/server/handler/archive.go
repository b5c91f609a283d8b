package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// ArchiveHandler lists archived ledger and history snapshots in object
// storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler. reader may be nil when object
// storage is disabled.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

const archiveRoot = "archive/"

// List returns archived objects under prefix, "archive/" by default.
// GET /api/archive?prefix=archive/opportunities/
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = archiveRoot
	}
	objects, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	if objects == nil {
		objects = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"prefix": prefix, "objects": objects})
}

// Object streams one archived object. Only paths under archive/ are served.
// GET /api/archive/object?path=archive/history/2026-03-01/1772366400.json
func (h *ArchiveHandler) Object(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "archive storage is not configured")
		return
	}

	p := path.Clean(r.URL.Query().Get("path"))
	if !strings.HasPrefix(p, archiveRoot) {
		writeError(w, http.StatusBadRequest, "path must name an object under archive/")
		return
	}

	body, err := h.reader.Get(r.Context(), p)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "archive object not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get archive object failed",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "failed to read archive object")
		return
	}
	defer body.Close()

	ct := "application/octet-stream"
	switch path.Ext(p) {
	case ".jsonl":
		ct = "application/x-ndjson"
	case ".json":
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(p)+`"`)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: stream archive object interrupted",
			slog.String("path", p),
			slog.String("error", err.Error()),
		)
	}
}
