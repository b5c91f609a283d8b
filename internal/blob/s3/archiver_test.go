package s3blob_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	s3blob "github.com/aaroncodesalot/daylight-prediction-markets/internal/blob/s3"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/store/memory"
)

type recordingWriter struct {
	objects     map[string][]byte
	types       map[string]string
	multiparted []string
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{objects: map[string][]byte{}, types: map[string]string{}}
}

func (w *recordingWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	w.types[path] = contentType
	return nil
}

func (w *recordingWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	w.multiparted = append(w.multiparted, path)
	return nil
}

func TestArchiveOpportunities(t *testing.T) {
	w := newRecordingWriter()
	audit := memory.NewAuditStore()
	a := s3blob.NewArchiver(w, audit)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if path, err := a.ArchiveOpportunities(ctx, nil, at); err != nil || path != "" {
		t.Fatalf("empty archive: path=%q err=%v", path, err)
	}

	records := []domain.Opportunity{
		{ID: "1", Key: "K1|P1", Spread: 6, Status: domain.OpportunityClosed, DetectedAt: at.Add(-time.Hour)},
		{ID: "2", Key: "K2|P2", Spread: 8, Status: domain.OpportunityOpen, DetectedAt: at.Add(-30 * time.Minute)},
	}
	path, err := a.ArchiveOpportunities(ctx, records, at)
	if err != nil {
		t.Fatal(err)
	}
	if want := "archive/opportunities/2026-03-01/1772366400.jsonl"; path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if w.types[path] != "application/x-ndjson" {
		t.Errorf("content type = %q", w.types[path])
	}

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(w.objects[path]))
	for sc.Scan() {
		var o domain.Opportunity
		if err := json.Unmarshal(sc.Bytes(), &o); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		ids = append(ids, o.ID)
	}
	if strings.Join(ids, ",") != "1,2" {
		t.Fatalf("ids = %v", ids)
	}

	entries, _ := audit.List(ctx, domain.ListOpts{Event: "archive.opportunities"})
	if len(entries) != 1 || entries[0].Detail["path"] != path {
		t.Fatalf("audit = %+v", entries)
	}
}

func TestArchiveHistory(t *testing.T) {
	w := newRecordingWriter()
	a := s3blob.NewArchiver(w, nil)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	path, err := a.ArchiveHistory(context.Background(), map[string][]domain.PriceSample{
		"k:BTC": {{T: at, P: 41}},
	}, at)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, "archive/history/2026-03-01/") || !strings.HasSuffix(path, ".json") {
		t.Fatalf("path = %q", path)
	}
	if len(w.multiparted) != 0 {
		t.Fatal("small snapshot used multipart")
	}

	var snap struct {
		Series map[string][]domain.PriceSample `json:"series"`
	}
	if err := json.Unmarshal(w.objects[path], &snap); err != nil {
		t.Fatal(err)
	}
	if got := snap.Series["k:BTC"]; len(got) != 1 || got[0].P != 41 {
		t.Fatalf("series = %+v", snap.Series)
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	infos := []domain.BlobInfo{
		{Path: "a", LastModified: base},
		{Path: "b", LastModified: base.Add(2 * time.Hour)},
		{Path: "c", LastModified: base.Add(time.Hour)},
	}
	s3blob.SortNewestFirst(infos)
	if infos[0].Path != "b" || infos[1].Path != "c" || infos[2].Path != "a" {
		t.Fatalf("order = %+v", infos)
	}
}
