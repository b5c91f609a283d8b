package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNextRun(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 7, 30, 0, time.UTC) // a Sunday
	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 0 * * *", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)},
		{"30 9-11 * * *", time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"0 3 1,15 * *", time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)},
		{"0 12 * * 1", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)},
		{"* * * * *", time.Date(2026, 3, 1, 10, 8, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := pipeline.NextRun(tt.expr, base)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRun = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextRunRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "0 0 * *", "61 * * * *", "x * * * *", "*/0 * * * *", "5-1 * * * *"} {
		if _, err := pipeline.NextRun(expr, time.Now()); err == nil {
			t.Errorf("%q accepted", expr)
		}
	}
}

type fakeArchiver struct {
	series map[string][]domain.PriceSample
	err    error
}

func (f *fakeArchiver) ArchiveOpportunities(context.Context, []domain.Opportunity, time.Time) (string, error) {
	return "", nil
}

func (f *fakeArchiver) ArchiveHistory(_ context.Context, series map[string][]domain.PriceSample, _ time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.series = series
	if len(series) == 0 {
		return "", nil
	}
	return "archive/history/x.json", nil
}

type staticHistory map[string][]domain.PriceSample

func (h staticHistory) HistorySnapshot() map[string][]domain.PriceSample { return h }

func TestArchiverRun(t *testing.T) {
	src := staticHistory{"k:K1": {{T: time.Now(), P: 52}}}
	blob := &fakeArchiver{}
	if err := pipeline.NewArchiver(blob, src, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(blob.series["k:K1"]) != 1 {
		t.Fatalf("archived = %+v", blob.series)
	}

	blob.err = errors.New("s3 down")
	if err := pipeline.NewArchiver(blob, src, discardLogger()).Run(context.Background()); err == nil {
		t.Fatal("upload error swallowed")
	}
}

type blockingLooper struct{ started chan struct{} }

func (l blockingLooper) Run(ctx context.Context) error {
	close(l.started)
	<-ctx.Done()
	return ctx.Err()
}

type failingLooper struct{}

func (failingLooper) Run(context.Context) error { return errors.New("feed misconfigured") }

func TestOrchestratorCleanShutdown(t *testing.T) {
	l := blockingLooper{started: make(chan struct{})}
	archiver := pipeline.NewArchiver(&fakeArchiver{}, staticHistory{}, discardLogger())
	o := pipeline.NewOrchestrator(l, archiver, "0 0 * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	<-l.started
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v, want nil on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}
}

func TestOrchestratorPropagatesFailure(t *testing.T) {
	o := pipeline.NewOrchestrator(failingLooper{}, nil, "", discardLogger())
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("loop failure swallowed")
	}
}
