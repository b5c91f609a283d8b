package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/kalshi"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/polymarket"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/service"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakeKalshi struct {
	market    kalshi.KalshiMarket
	event     kalshi.KalshiEvent
	calls     int
	auth      bool
	positions []kalshi.KalshiMarketPosition
	balance   int64
	err       error
}

func (f *fakeKalshi) GetMarket(_ context.Context, _ string) (kalshi.KalshiMarket, error) {
	f.calls++
	return f.market, f.err
}

func (f *fakeKalshi) GetEvent(_ context.Context, _ string) (kalshi.KalshiEvent, error) {
	return f.event, nil
}

func (f *fakeKalshi) Authenticated() bool { return f.auth }

func (f *fakeKalshi) GetPositions(_ context.Context) ([]kalshi.KalshiMarketPosition, error) {
	return f.positions, f.err
}

func (f *fakeKalshi) GetBalance(_ context.Context) (int64, error) {
	return f.balance, f.err
}

type fakePoly struct {
	market polymarket.APIMarket
	err    error
}

func (f *fakePoly) GetMarketBySlug(_ context.Context, _ string) (polymarket.APIMarket, error) {
	return f.market, f.err
}

func TestMarketServiceKalshi(t *testing.T) {
	k := &fakeKalshi{
		market: kalshi.KalshiMarket{
			Ticker:       "BTC-100K",
			EventTicker:  "BTC",
			Title:        "market title",
			YesBid:       52,
			Volume:       1200,
			OpenInterest: 340,
			CloseTime:    "2026-12-31T23:59:00Z",
		},
		event: kalshi.KalshiEvent{Title: "Will BTC hit 100k by Dec"},
	}
	svc := service.NewMarketService(k, &fakePoly{}, memory.NewMarketCache(), discardLogger())

	d, err := svc.Kalshi(context.Background(), "BTC-100K")
	if err != nil {
		t.Fatal(err)
	}
	if d.Title != "Will BTC hit 100k by Dec" {
		t.Errorf("title = %q", d.Title)
	}
	if d.YesPrice != 52 || d.NoPrice != 48 {
		t.Errorf("prices = %d/%d, want 52/48", d.YesPrice, d.NoPrice)
	}
	if d.Link != "https://kalshi.com/markets/btc-100k" {
		t.Errorf("link = %q", d.Link)
	}
	if d.Status != "open" {
		t.Errorf("status = %q", d.Status)
	}
	if d.Extras["close_time"] != "2026-12-31" || d.Extras["open_time"] != "N/A" || d.Extras["open_interest"] != "340" {
		t.Errorf("extras = %v", d.Extras)
	}

	if _, err := svc.Kalshi(context.Background(), "BTC-100K"); err != nil {
		t.Fatal(err)
	}
	if k.calls != 1 {
		t.Errorf("venue called %d times, want 1 (second lookup cached)", k.calls)
	}
}

func TestMarketServicePolymarket(t *testing.T) {
	p := &fakePoly{market: polymarket.APIMarket{
		Slug:          "btc-100k-dec",
		Question:      "BTC above $100,000 December",
		Active:        true,
		OutcomePrices: `["0.61","0.39"]`,
		Volume:        1234.6,
		LiquidityNum:  5000.2,
	}}
	svc := service.NewMarketService(&fakeKalshi{}, p, nil, discardLogger())

	d, err := svc.Polymarket(context.Background(), "btc-100k-dec")
	if err != nil {
		t.Fatal(err)
	}
	if d.YesPrice != 61 || d.NoPrice != 39 {
		t.Errorf("prices = %d/%d", d.YesPrice, d.NoPrice)
	}
	if d.Volume != 1235 || d.Status != "open" || d.Link != "https://polymarket.com/event/btc-100k-dec" {
		t.Errorf("detail = %+v", d)
	}
	if d.Extras["liquidity"] != "$5000" || d.Extras["end_date"] != "N/A" {
		t.Errorf("extras = %v", d.Extras)
	}
}

func TestMarketServiceErrors(t *testing.T) {
	svc := service.NewMarketService(
		&fakeKalshi{err: domain.ErrNotFound},
		&fakePoly{err: domain.ErrNotFound},
		nil, discardLogger(),
	)
	if _, err := svc.Kalshi(context.Background(), "X"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("kalshi err = %v", err)
	}
	if _, err := svc.Polymarket(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("poly err = %v", err)
	}
}

func TestPortfolioMockFallback(t *testing.T) {
	tests := []struct {
		name string
		k    *fakeKalshi
	}{
		{"unauthenticated", &fakeKalshi{}},
		{"fetch error", &fakeKalshi{auth: true, err: errors.New("boom")}},
		{"no positions", &fakeKalshi{auth: true, positions: []kalshi.KalshiMarketPosition{{Ticker: "X", Position: 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := service.NewPortfolioService(tt.k, discardLogger()).Get(context.Background())
			if p.Live {
				t.Fatal("mock portfolio reported live")
			}
			if len(p.Positions) != 5 {
				t.Fatalf("positions = %d, want 5", len(p.Positions))
			}
			// 0.60 + 1.50 + 0.30 + 1.00 - 0.16
			if p.TotalPnL.StringFixed(2) != "3.24" {
				t.Errorf("total pnl = %s", p.TotalPnL.StringFixed(2))
			}
			// 52*15 + 61*25 + 55*10 + 70*20 + 58*8 = 4719 cents
			if p.TotalValue.StringFixed(2) != "47.19" {
				t.Errorf("total value = %s", p.TotalValue.StringFixed(2))
			}
			if p.WinRate != 80 {
				t.Errorf("win rate = %d", p.WinRate)
			}
		})
	}
}

func TestPortfolioLive(t *testing.T) {
	k := &fakeKalshi{
		auth:    true,
		balance: 12345,
		positions: []kalshi.KalshiMarketPosition{
			{Ticker: "BTC-100K", Position: 10, TotalTraded: 450, MarketExposure: 50, RestingOrdersCount: 2},
			{Ticker: "FED-JUN", Position: -4, TotalTraded: 240, MarketExposure: 55},
			{Ticker: "FLAT", Position: 0},
		},
	}
	p := service.NewPortfolioService(k, discardLogger()).Get(context.Background())
	if !p.Live {
		t.Fatal("expected live portfolio")
	}
	if len(p.Positions) != 2 {
		t.Fatalf("positions = %+v", p.Positions)
	}
	btc, fed := p.Positions[0], p.Positions[1]
	if btc.Side != "Yes" || btc.Qty != 10 || btc.AvgPrice != 45 || btc.CurrentPrice != 50 || btc.RestingOrders != 2 {
		t.Errorf("btc = %+v", btc)
	}
	if btc.PnL.StringFixed(2) != "0.50" {
		t.Errorf("btc pnl = %s", btc.PnL)
	}
	if fed.Side != "No" || fed.Qty != 4 || fed.AvgPrice != 60 {
		t.Errorf("fed = %+v", fed)
	}
	if p.TotalValue.StringFixed(2) != "123.45" {
		t.Errorf("total value = %s", p.TotalValue.StringFixed(2))
	}
	if p.WinRate != 50 {
		t.Errorf("win rate = %d", p.WinRate)
	}
}

func TestWatchlistService(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditStore()
	svc := service.NewWatchlistService(memory.NewWatchlistStore(), audit, discardLogger())

	item, added, err := svc.Add(ctx, domain.WatchItem{ID: "BTC-100K"})
	if err != nil || !added {
		t.Fatalf("add: added=%v err=%v", added, err)
	}
	if item.Source != "unknown" || item.Link != "#" || item.Title != "BTC-100K" {
		t.Errorf("defaults not applied: %+v", item)
	}
	if _, added, _ := svc.Add(ctx, domain.WatchItem{ID: "BTC-100K", Source: "kalshi"}); added {
		t.Error("duplicate add reported added")
	}
	if _, _, err := svc.Add(ctx, domain.WatchItem{ID: "  "}); err == nil {
		t.Error("blank id accepted")
	}

	items, err := svc.List(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("list = %v, %v", items, err)
	}

	delta := 3
	quotes := map[string]domain.Quote{
		"BTC-100K": {Instrument: domain.Instrument{ID: "BTC-100K", YesPrice: 55}, Delta: &delta},
	}
	entries := service.Enrich(append(items, domain.WatchItem{ID: "GONE"}), quotes)
	if entries[0].YesPrice == nil || *entries[0].YesPrice != 55 || *entries[0].Delta != 3 {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[1].YesPrice != nil || entries[1].Delta != nil {
		t.Errorf("unquoted entry enriched: %+v", entries[1])
	}

	if err := svc.Remove(ctx, "BTC-100K"); err != nil {
		t.Fatal(err)
	}
	if items, _ := svc.List(ctx); len(items) != 0 {
		t.Errorf("after remove = %+v", items)
	}

	logged, _ := audit.List(ctx, domain.ListOpts{})
	if len(logged) != 2 {
		t.Errorf("audit entries = %d, want 2", len(logged))
	}
}
