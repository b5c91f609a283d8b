package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

const (
	contentTypeJSONL = "application/x-ndjson"
	contentTypeJSON  = "application/json"
)

// Archiver implements domain.Archiver by serializing records and uploading
// them through a BlobWriter. Every upload is recorded in the audit log.
//
// Object layout:
//
//	archive/opportunities/2026-03-01/1772366400.jsonl
//	archive/history/2026-03-01/1772366400.json
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit}
}

// ArchiveOpportunities writes records as JSONL, one opportunity per line in
// detection order.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, records []domain.Opportunity, at time.Time) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path := ArchivePath("opportunities", at, ".jsonl")
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL); err != nil {
		return "", fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	a.logAudit(ctx, "archive.opportunities", path, len(records), at)
	return path, nil
}

// ArchiveHistory writes a snapshot of every price series as one JSON object
// keyed by history key. Large snapshots use a multipart upload.
func (a *Archiver) ArchiveHistory(ctx context.Context, series map[string][]domain.PriceSample, at time.Time) (string, error) {
	if len(series) == 0 {
		return "", nil
	}

	snapshot := struct {
		TakenAt time.Time                       `json:"taken_at"`
		Series  map[string][]domain.PriceSample `json:"series"`
	}{TakenAt: at.UTC(), Series: series}

	buf, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive history marshal: %w", err)
	}

	path := ArchivePath("history", at, ".json")
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSON)
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: archive history upload: %w", err)
	}

	a.logAudit(ctx, "archive.history", path, len(series), at)
	return path, nil
}

// logAudit records an upload. Audit failures do not fail the archive since
// the object is already written.
func (a *Archiver) logAudit(ctx context.Context, event, path string, count int, at time.Time) {
	if a.audit == nil {
		return
	}
	_ = a.audit.Log(ctx, event, map[string]any{
		"path":  path,
		"count": count,
		"at":    at.UTC().Format(time.RFC3339),
	})
}

// ArchivePath builds the object key for an archive file, partitioned by UTC
// day.
func ArchivePath(kind string, at time.Time, ext string) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%s/%d%s", kind, at.Format("2006-01-02"), at.Unix(), ext)
}

// SortNewestFirst orders blob listings by modification time, newest first.
func SortNewestFirst(infos []domain.BlobInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].LastModified.After(infos[j].LastModified)
	})
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface checks.
var (
	_ domain.Archiver   = (*Archiver)(nil)
	_ domain.BlobWriter = (*Client)(nil)
	_ domain.BlobReader = (*Client)(nil)
)
