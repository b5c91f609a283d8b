package history_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/history"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intp(n int) *int { return &n }

func TestAppendCapKeepsMostRecent(t *testing.T) {
	s := history.New(history.DefaultCap)
	for i := 0; i < history.DefaultCap+5; i++ {
		s.Append("k:BTC", i, t0.Add(time.Duration(i)*time.Minute))
	}

	ser := s.Series("k:BTC")
	if len(ser) != history.DefaultCap {
		t.Fatalf("len = %d, want %d", len(ser), history.DefaultCap)
	}
	for i, smp := range ser {
		if smp.P != i+5 {
			t.Fatalf("sample %d = %d, want %d", i, smp.P, i+5)
		}
		if i > 0 && !smp.T.After(ser[i-1].T) {
			t.Fatalf("samples not time-ascending at %d", i)
		}
	}
}

func TestAppendKeepsFlatRuns(t *testing.T) {
	s := history.New(5)
	for i := 0; i < 3; i++ {
		s.Append("p:fed", 42, t0.Add(time.Duration(i)*time.Minute))
	}
	if got := len(s.Series("p:fed")); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}
}

func TestDelta(t *testing.T) {
	s := history.New(0)
	if d := s.Delta("k:X", 50); d != nil {
		t.Fatalf("first sighting delta = %d, want nil", *d)
	}
	s.Append("k:X", 50, t0)
	if d := s.Delta("k:X", 47); d == nil || *d != -3 {
		t.Fatalf("delta = %v, want -3", d)
	}
	s.Append("k:X", 47, t0.Add(time.Minute))
	if d := s.Delta("k:X", 47); d == nil || *d != 0 {
		t.Fatalf("delta = %v, want 0", d)
	}
}

func TestSeriesReturnsCopy(t *testing.T) {
	s := history.New(0)
	s.Append("k:X", 10, t0)
	ser := s.Series("k:X")
	ser[0].P = 99
	if got := s.Series("k:X")[0].P; got != 10 {
		t.Fatalf("store mutated through Series copy: %d", got)
	}
}

func TestLoadTrims(t *testing.T) {
	data := map[string][]domain.PriceSample{}
	for i := 0; i < 8; i++ {
		data["p:a"] = append(data["p:a"], domain.PriceSample{T: t0.Add(time.Duration(i) * time.Second), P: i})
	}
	s := history.New(3)
	s.Load(data)
	ser := s.Series("p:a")
	if len(ser) != 3 || ser[0].P != 5 || ser[2].P != 7 {
		t.Fatalf("series = %+v", ser)
	}
	if len(data["p:a"]) != 8 {
		t.Fatal("Load mutated its input")
	}
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "p:a" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestTopMovers(t *testing.T) {
	quotes := []domain.Quote{
		{Instrument: domain.Instrument{ID: "a"}, Delta: intp(3)},
		{Instrument: domain.Instrument{ID: "b"}, Delta: nil},
		{Instrument: domain.Instrument{ID: "c"}, Delta: intp(-7)},
		{Instrument: domain.Instrument{ID: "d"}, Delta: intp(0)},
		{Instrument: domain.Instrument{ID: "e"}, Delta: intp(7)},
		{Instrument: domain.Instrument{ID: "f"}, Delta: intp(1)},
		{Instrument: domain.Instrument{ID: "g"}, Delta: intp(-2)},
		{Instrument: domain.Instrument{ID: "h"}, Delta: intp(5)},
	}
	got := history.TopMovers(quotes, history.DefaultTopMovers)
	want := []string{"c", "e", "h", "a", "g"}
	if len(got) != len(want) {
		t.Fatalf("got %d movers, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("mover %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[0].Delta != -7 {
		t.Errorf("delta sign lost: %d", got[0].Delta)
	}
}

func TestTopMoversEmpty(t *testing.T) {
	if got := history.TopMovers(nil, 5); len(got) != 0 {
		t.Fatalf("got %v", got)
	}
}

func TestSparkline(t *testing.T) {
	if got := history.Sparkline([]domain.PriceSample{{T: t0, P: 50}}); got != "" {
		t.Fatalf("single sample sparkline = %q", got)
	}

	up := history.Sparkline([]domain.PriceSample{{T: t0, P: 10}, {T: t0, P: 20}})
	want := `<svg width="60" height="20" viewBox="0 0 60 20" style="vertical-align:middle">` +
		`<polyline points="0.0,20.0 60.0,0.0" fill="none" stroke="#22c55e" stroke-width="1.5" stroke-linecap="round" stroke-linejoin="round"/></svg>`
	if up != want {
		t.Fatalf("sparkline =\n%s\nwant\n%s", up, want)
	}

	down := history.Sparkline([]domain.PriceSample{{P: 30}, {P: 20}, {P: 25}})
	if !strings.Contains(down, `points="0.0,0.0 30.0,20.0 60.0,10.0"`) {
		t.Errorf("points wrong: %s", down)
	}
	if !strings.Contains(down, `stroke="#DC2626"`) {
		t.Errorf("expected red stroke: %s", down)
	}

	flat := history.Sparkline([]domain.PriceSample{{P: 40}, {P: 40}})
	if !strings.Contains(flat, `points="0.0,20.0 60.0,20.0"`) || !strings.Contains(flat, "#22c55e") {
		t.Errorf("flat sparkline = %s", flat)
	}
}
