package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/kalshi"
)

// KalshiPortfolio is the subset of the Kalshi client the portfolio needs.
type KalshiPortfolio interface {
	Authenticated() bool
	GetPositions(ctx context.Context) ([]kalshi.KalshiMarketPosition, error)
	GetBalance(ctx context.Context) (int64, error)
}

// mockPositions is shown when no Kalshi account is configured or the account
// has no open positions.
var mockPositions = []domain.PortfolioPosition{
	{Market: "BTC above $100k by Dec", Side: "Yes", Qty: 15, AvgPrice: 48, CurrentPrice: 52},
	{Market: "Trump wins 2024", Side: "Yes", Qty: 25, AvgPrice: 55, CurrentPrice: 61},
	{Market: "Fed cuts rates June", Side: "No", Qty: 10, AvgPrice: 52, CurrentPrice: 55},
	{Market: "S&P 500 new ATH by March", Side: "Yes", Qty: 20, AvgPrice: 65, CurrentPrice: 70},
	{Market: "TikTok banned in US", Side: "No", Qty: 8, AvgPrice: 60, CurrentPrice: 58},
}

// PortfolioService builds the portfolio view from the signed Kalshi
// portfolio endpoints.
type PortfolioService struct {
	kalshi KalshiPortfolio
	logger *slog.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(client KalshiPortfolio, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{kalshi: client, logger: logger}
}

// Get returns the live portfolio, or the mock portfolio when the account is
// not configured, unreachable, or holds no positions.
func (s *PortfolioService) Get(ctx context.Context) domain.Portfolio {
	positions, balance, ok := s.fetch(ctx)
	if !ok || len(positions) == 0 {
		return Summarize(mockPositions, nil)
	}
	return Summarize(positions, &balance)
}

func (s *PortfolioService) fetch(ctx context.Context) ([]domain.PortfolioPosition, int64, bool) {
	if s.kalshi == nil || !s.kalshi.Authenticated() {
		return nil, 0, false
	}

	var (
		raw     []kalshi.KalshiMarketPosition
		balance int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		raw, err = s.kalshi.GetPositions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		balance, err = s.kalshi.GetBalance(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "portfolio: kalshi fetch failed, using mock",
			slog.String("error", err.Error()),
		)
		return nil, 0, false
	}

	out := make([]domain.PortfolioPosition, 0, len(raw))
	for _, p := range raw {
		if p.Position == 0 {
			continue
		}
		qty := p.Position
		side := "Yes"
		if qty < 0 {
			qty = -qty
			side = "No"
		}
		out = append(out, domain.PortfolioPosition{
			Ticker:        p.Ticker,
			Market:        p.Ticker,
			Side:          side,
			Qty:           qty,
			AvgPrice:      int(decimal.NewFromFloat(p.TotalTraded).Div(decimal.NewFromInt(qty)).Round(0).IntPart()),
			CurrentPrice:  int(decimal.NewFromFloat(p.MarketExposure).Round(0).IntPart()),
			RestingOrders: p.RestingOrdersCount,
		})
	}
	return out, balance, true
}

// Summarize computes per-position and aggregate P&L. P&L per position is
// (current - avg) * qty cents. Total value is the account balance when known,
// else the marked value of the positions. Win rate is the rounded percentage
// of positions with positive P&L.
func Summarize(positions []domain.PortfolioPosition, balanceCents *int64) domain.Portfolio {
	hundred := decimal.NewFromInt(100)
	out := domain.Portfolio{
		Live:      balanceCents != nil,
		Positions: make([]domain.PortfolioPosition, len(positions)),
		TotalPnL:  decimal.Zero,
	}

	var valueCents int64
	winners := 0
	for i, p := range positions {
		pnlCents := int64(p.CurrentPrice-p.AvgPrice) * p.Qty
		p.PnL = decimal.NewFromInt(pnlCents).Div(hundred)
		out.Positions[i] = p
		out.TotalPnL = out.TotalPnL.Add(p.PnL)
		valueCents += int64(p.CurrentPrice) * p.Qty
		if pnlCents > 0 {
			winners++
		}
	}

	if balanceCents != nil {
		valueCents = *balanceCents
	}
	out.TotalValue = decimal.NewFromInt(valueCents).Div(hundred)
	if len(positions) > 0 {
		out.WinRate = int(decimal.NewFromInt(int64(winners * 100)).Div(decimal.NewFromInt(int64(len(positions)))).Round(0).IntPart())
	}
	return out
}
