package scanner_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/alert"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/matching"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/scanner"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/store/memory"
)

type fakeFeed struct {
	mu    sync.Mutex
	venue domain.Venue
	snap  []domain.Instrument
	err   error
}

func (f *fakeFeed) Venue() domain.Venue { return f.venue }

func (f *fakeFeed) Fetch(_ context.Context) ([]domain.Instrument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeFeed) set(snap []domain.Instrument, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	scanner *scanner.Scanner
	kalshi  *fakeFeed
	poly    *fakeFeed
	ledger  *memory.OpportunityStore
	history *memory.PriceHistoryStore
	alerts  *memory.AlertStore
	config  *memory.ScanConfigStore
	locks   *memory.LockManager
	bus     *memory.SignalBus
	clock   *clock
}

func kalshiInst(id, title string, price int) domain.Instrument {
	return domain.Instrument{Venue: domain.VenueKalshi, ID: id, Title: title, YesPrice: price, Volume: 100}
}

func polyInst(id, title string, price int) domain.Instrument {
	return domain.Instrument{Venue: domain.VenuePolymarket, ID: id, Title: title, YesPrice: price, Volume: 100}
}

func newHarness(t *testing.T, manual bool) *harness {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	h := &harness{
		kalshi:  &fakeFeed{venue: domain.VenueKalshi},
		poly:    &fakeFeed{venue: domain.VenuePolymarket},
		ledger:  memory.NewOpportunityStore(),
		history: memory.NewPriceHistoryStore(),
		alerts:  memory.NewAlertStore(),
		config:  memory.NewScanConfigStore(),
		locks:   memory.NewLockManager(),
		bus:     memory.NewSignalBus(100),
		clock:   &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.scanner = scanner.New(scanner.Config{
		Kalshi:       h.kalshi,
		Polymarket:   h.poly,
		Ledger:       h.ledger,
		History:      h.history,
		ScanConfig:   h.config,
		Watchlist:    memory.NewWatchlistStore(),
		Audit:        memory.NewAuditStore(),
		Alerts:       alert.NewService(h.alerts, h.bus, nil, logger),
		Locks:        h.locks,
		Bus:          h.bus,
		Scan:         domain.DefaultScanConfig(),
		FetchTimeout: time.Second,
		Manual:       manual,
		Clock:        h.clock.Now,
		Logger:       logger,
	})
	h.scanner.Load(context.Background())
	return h
}

func (h *harness) cycle(t *testing.T) scanner.Report {
	t.Helper()
	rep, err := h.scanner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	return rep
}

func arbAlerts(t *testing.T, store *memory.AlertStore) []domain.Alert {
	t.Helper()
	all, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var out []domain.Alert
	for _, a := range all {
		if a.MarketID == domain.ArbMarketID {
			out = append(out, a)
		}
	}
	return out
}

func TestWorkedExampleBelowThreshold(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Will BTC hit 100k by Dec", 52)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "BTC above $100,000 December", 61)}, nil)

	// Only "btc" is shared: 1 of max(6, 4) tokens.
	if got := matching.Similarity("Will BTC hit 100k by Dec", "BTC above $100,000 December"); math.Abs(got-1.0/6) > 1e-9 {
		t.Fatalf("similarity = %v, want 1/6", got)
	}

	rep := h.cycle(t)
	if len(rep.Pairs) != 0 || len(rep.Opened) != 0 {
		t.Fatalf("pairs=%d opened=%d, want none at threshold 0.4", len(rep.Pairs), len(rep.Opened))
	}
	if len(arbAlerts(t, h.alerts)) != 0 {
		t.Fatal("alert emitted without an opportunity")
	}
}

func TestShortTokensDiluteMatch(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Will it rain in NY on May 1", 30)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Rain in May", 45)}, nil)

	// "rain" and "may" are shared, out of eight Kalshi tokens.
	rep := h.cycle(t)
	if len(rep.Pairs) != 0 || len(rep.Opened) != 0 {
		t.Fatalf("pairs=%d opened=%d, want none for similarity 0.25", len(rep.Pairs), len(rep.Opened))
	}
}

func TestOpenAlertOnceThenClose(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Will BTC hit 100k by December", 52)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "BTC hit 100k December", 61)}, nil)

	rep := h.cycle(t)
	if len(rep.Opened) != 1 {
		t.Fatalf("opened = %d, want 1", len(rep.Opened))
	}
	o := rep.Opened[0]
	if o.Key != "K1|P1" || o.Spread != 9 || o.Direction != domain.BuyASellB || !o.IsOpen() {
		t.Fatalf("opportunity = %+v", o)
	}
	if o.ProfitPer100.StringFixed(2) != "9.00" {
		t.Errorf("profit per 100 = %s", o.ProfitPer100)
	}
	if rep.AlertsEmitted != 1 {
		t.Errorf("alerts emitted = %d, want 1", rep.AlertsEmitted)
	}
	if got := arbAlerts(t, h.alerts); len(got) != 1 || !got[0].CreatedAt.Equal(h.clock.Now()) {
		t.Errorf("arb alert = %+v, want created at %v", got, h.clock.Now())
	}

	for i := 0; i < 2; i++ {
		h.clock.Advance(5 * time.Minute)
		rep = h.cycle(t)
		if len(rep.Opened) != 0 || len(rep.Closed) != 0 {
			t.Fatalf("cycle %d: opened=%d closed=%d, want no transitions", i+2, len(rep.Opened), len(rep.Closed))
		}
	}
	if got := len(arbAlerts(t, h.alerts)); got != 1 {
		t.Fatalf("arb alerts after three cycles = %d, want 1", got)
	}

	// Prices converge ten minutes after detection.
	h.poly.set([]domain.Instrument{polyInst("P1", "BTC hit 100k December", 53)}, nil)
	rep = h.cycle(t)
	if len(rep.Closed) != 1 {
		t.Fatalf("closed = %d, want 1", len(rep.Closed))
	}
	c := rep.Closed[0]
	if c.DurationMinutes == nil || *c.DurationMinutes != 10 {
		t.Errorf("duration = %v, want 10", c.DurationMinutes)
	}
	if rep.Open != 0 {
		t.Errorf("open = %d", rep.Open)
	}

	saved, _ := h.ledger.Load(context.Background())
	if len(saved) != 1 || saved[0].Status != domain.OpportunityClosed {
		t.Errorf("persisted ledger = %+v", saved)
	}
}

func TestReopenCreatesNewRecord(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 40)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)
	h.cycle(t)

	h.clock.Advance(time.Minute)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 41)}, nil)
	h.cycle(t)

	h.clock.Advance(time.Minute)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)
	rep := h.cycle(t)
	if len(rep.Opened) != 1 {
		t.Fatalf("opened = %d", len(rep.Opened))
	}

	records := h.scanner.Ledger("", 0)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	open := 0
	for _, r := range records {
		if r.IsOpen() {
			open++
		}
	}
	if open != 1 || records[0].ID == records[1].ID {
		t.Errorf("records = %+v", records)
	}
	if got := len(arbAlerts(t, h.alerts)); got != 2 {
		t.Errorf("arb alerts = %d, want one per opening", got)
	}
}

func TestEmptySnapshotIsInconclusive(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 40)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)
	h.cycle(t)

	h.clock.Advance(5 * time.Minute)
	h.poly.set(nil, errors.New("gamma down"))
	rep := h.cycle(t)
	if !rep.Inconclusive {
		t.Fatal("cycle not marked inconclusive")
	}
	if len(rep.Closed) != 0 || rep.Open != 1 {
		t.Fatalf("closed=%d open=%d, want the opportunity left open", len(rep.Closed), rep.Open)
	}
	if rep.FeedErrors[domain.VenuePolymarket] == "" {
		t.Error("feed error not reported")
	}
	// Kalshi history still advances.
	if got := len(h.scanner.Series("k:K1")); got != 2 {
		t.Errorf("k:K1 samples = %d, want 2", got)
	}
}

func TestZeroPricesNeverMatch(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 0)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)
	rep := h.cycle(t)
	if !rep.Inconclusive || len(rep.Pairs) != 0 {
		t.Fatalf("report = %+v", rep.Summary())
	}
}

func TestLedgerSaveFailureIsReturned(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 40)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)
	h.ledger.FailSaves(errors.New("disk full"))

	_, err := h.scanner.RunCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "scanner: save ledger") {
		t.Fatalf("err = %v", err)
	}
	if got := len(arbAlerts(t, h.alerts)); got != 0 {
		t.Errorf("alerts emitted for an unsaved opportunity: %d", got)
	}

	h.ledger.FailSaves(nil)
	rep := h.cycle(t)
	if len(rep.Opened) != 1 || rep.AlertsEmitted != 1 {
		t.Errorf("retry: opened=%d alerts=%d", len(rep.Opened), rep.AlertsEmitted)
	}
}

func TestHeldLockSkipsCycle(t *testing.T) {
	h := newHarness(t, true)
	unlock, err := h.locks.Acquire(context.Background(), scanner.CycleLockKey, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	if _, err := h.scanner.RunCycle(context.Background()); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}
	if _, ok := h.scanner.Last(); ok {
		t.Error("skipped cycle recorded a report")
	}
}

func TestManualAlertTriggers(t *testing.T) {
	h := newHarness(t, true)
	svc := alert.NewService(h.alerts, nil, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if _, err := svc.Create(context.Background(), alert.CreateRequest{
		MarketID: "K1", Condition: "above", TargetPrice: 50,
	}); err != nil {
		t.Fatal(err)
	}

	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 49)}, nil)
	h.poly.set(nil, nil)
	if rep := h.cycle(t); rep.AlertsTriggered != 0 {
		t.Fatalf("triggered at 49: %d", rep.AlertsTriggered)
	}
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 50)}, nil)
	if rep := h.cycle(t); rep.AlertsTriggered != 1 {
		t.Fatalf("triggered at 50: %d", rep.AlertsTriggered)
	}
}

func TestPublishesTransitions(t *testing.T) {
	h := newHarness(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := h.bus.Subscribe(ctx, domain.ChannelOpportunities)
	if err != nil {
		t.Fatal(err)
	}

	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 40)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)
	h.cycle(t)

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), `"type":"opportunity_opened"`) {
			t.Errorf("message = %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no opportunity message published")
	}

	entries, err := h.bus.StreamRead(ctx, domain.StreamOpportunities, "0", 10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("stream entries = %d, err = %v", len(entries), err)
	}
}

func TestSetConfigPersistsAndRestores(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	bad := domain.DefaultScanConfig()
	bad.SimilarityThreshold = 0
	if err := h.scanner.SetConfig(ctx, bad); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("err = %v", err)
	}

	cfg := domain.DefaultScanConfig()
	cfg.MinSpread = 8
	cfg.CheckInterval = time.Minute
	if err := h.scanner.SetConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if got := h.scanner.Config(); got != cfg {
		t.Fatalf("live config = %+v", got)
	}

	restored := scanner.New(scanner.Config{
		Kalshi:     h.kalshi,
		Polymarket: h.poly,
		Ledger:     h.ledger,
		History:    h.history,
		ScanConfig: h.config,
		Scan:       domain.DefaultScanConfig(),
		Logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	restored.Load(ctx)
	if got := restored.Config(); got.MinSpread != 8 || got.CheckInterval != time.Minute {
		t.Fatalf("restored config = %+v", got)
	}
}

func TestDetectionThresholdGovernsClosure(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 40)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 46)}, nil)
	if rep := h.cycle(t); len(rep.Opened) != 1 {
		t.Fatal("not opened at spread 6")
	}

	cfg := h.scanner.Config()
	cfg.MinSpread = 10
	if err := h.scanner.SetConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if rep := h.cycle(t); len(rep.Closed) != 0 {
		t.Fatal("raising min spread closed an opportunity that is still there")
	}
}

func TestRequestThroughLoop(t *testing.T) {
	h := newHarness(t, true)
	h.kalshi.set([]domain.Instrument{kalshiInst("K1", "Fed cuts rates in June", 40)}, nil)
	h.poly.set([]domain.Instrument{polyInst("P1", "Fed cuts rates June", 50)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.scanner.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
	defer reqCancel()
	rep, err := h.scanner.Request(reqCtx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Opened) != 1 {
		t.Fatalf("opened = %d", len(rep.Opened))
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestView(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	k := []domain.Instrument{
		{Venue: domain.VenueKalshi, ID: "LOW", Title: "Fed cuts rates in June", YesPrice: 40, Volume: 10, Volume24h: 1},
		{Venue: domain.VenueKalshi, ID: "HIGH", Title: "Government shutdown this year", YesPrice: 70, Volume: 5, Volume24h: 100},
	}
	p := []domain.Instrument{
		{Venue: domain.VenuePolymarket, ID: "fed-june", Title: "Fed cuts rates June", YesPrice: 43, Volume: 500},
	}
	h.kalshi.set(k, nil)
	h.poly.set(p, nil)
	h.cycle(t)

	k[0].YesPrice = 42
	h.kalshi.set(k, nil)
	h.clock.Advance(time.Minute)
	h.cycle(t)

	v := h.scanner.View(ctx)
	if len(v.Kalshi) != 2 || v.Kalshi[0].ID != "HIGH" {
		t.Fatalf("kalshi order = %+v", v.Kalshi)
	}
	if v.Kalshi[1].Sparkline == "" {
		t.Error("no sparkline for an instrument with two samples")
	}
	// Spread 1 is below the view threshold of 2.
	if len(v.Candidates) != 0 {
		t.Errorf("candidates = %+v", v.Candidates)
	}
	if len(v.Movers) != 1 || v.Movers[0].ID != "LOW" || v.Movers[0].Delta != 2 {
		t.Errorf("movers = %+v", v.Movers)
	}
	if v.Stats.TotalMarkets != 3 || v.Stats.TotalVolume24h != "601" || v.Stats.AvgPrice != 52 {
		t.Errorf("stats = %+v", v.Stats)
	}
}

func TestTopKalshi(t *testing.T) {
	quotes := []domain.Quote{
		{Instrument: domain.Instrument{ID: "a", Volume: 100, Volume24h: 0}},
		{Instrument: domain.Instrument{ID: "b", Volume: 0, Volume24h: 11}},
		{Instrument: domain.Instrument{ID: "c", Volume: 50, Volume24h: 5}},
	}
	got := scanner.TopKalshi(quotes, 2)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("got %+v", got)
	}
}
