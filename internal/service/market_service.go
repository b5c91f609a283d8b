package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/kalshi"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/polymarket"
)

// MarketDetailTTL is how long a market detail lookup stays cached.
const MarketDetailTTL = 5 * time.Minute

// KalshiMarkets is the subset of the Kalshi client the detail lookup needs.
type KalshiMarkets interface {
	GetMarket(ctx context.Context, ticker string) (kalshi.KalshiMarket, error)
	GetEvent(ctx context.Context, eventTicker string) (kalshi.KalshiEvent, error)
}

// PolymarketMarkets is the subset of the Gamma client the detail lookup needs.
type PolymarketMarkets interface {
	GetMarketBySlug(ctx context.Context, slug string) (polymarket.APIMarket, error)
}

// MarketService serves single-instrument detail views from the venue APIs,
// cached for MarketDetailTTL.
type MarketService struct {
	kalshi KalshiMarkets
	poly   PolymarketMarkets
	cache  domain.MarketCache
	logger *slog.Logger
}

// NewMarketService creates a MarketService. cache may be nil.
func NewMarketService(
	kalshiClient KalshiMarkets,
	polyClient PolymarketMarkets,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		kalshi: kalshiClient,
		poly:   polyClient,
		cache:  cache,
		logger: logger,
	}
}

// Kalshi returns the detail view for a Kalshi market ticker. The title comes
// from the market's event when that lookup succeeds.
func (s *MarketService) Kalshi(ctx context.Context, ticker string) (domain.MarketDetail, error) {
	return s.cached(ctx, "kalshi:"+ticker, func() (domain.MarketDetail, error) {
		m, err := s.kalshi.GetMarket(ctx, ticker)
		if err != nil {
			return domain.MarketDetail{}, fmt.Errorf("market_service: kalshi %s: %w", ticker, err)
		}

		title := m.Title
		if m.EventTicker != "" {
			if ev, err := s.kalshi.GetEvent(ctx, m.EventTicker); err == nil && ev.Title != "" {
				title = ev.Title
			}
		}
		if title == "" {
			title = m.Ticker
		}
		status := m.Status
		if status == "" {
			status = "open"
		}

		return domain.MarketDetail{
			Venue:     domain.VenueKalshi,
			ID:        m.Ticker,
			Title:     title,
			Subtitle:  m.Subtitle,
			YesPrice:  kalshi.YesPrice(m),
			NoPrice:   kalshi.NoPrice(m),
			Volume:    m.Volume,
			Volume24h: m.Volume24H,
			Status:    status,
			Link:      "https://kalshi.com/markets/" + strings.ToLower(m.Ticker),
			Extras: map[string]string{
				"open_interest": strconv.FormatFloat(m.OpenInterest, 'f', 0, 64),
				"open_time":     formatDate(m.OpenTime),
				"close_time":    formatDate(m.CloseTime),
			},
		}, nil
	})
}

// Polymarket returns the detail view for a Polymarket market slug.
func (s *MarketService) Polymarket(ctx context.Context, slug string) (domain.MarketDetail, error) {
	return s.cached(ctx, "poly:"+slug, func() (domain.MarketDetail, error) {
		m, err := s.poly.GetMarketBySlug(ctx, slug)
		if err != nil {
			return domain.MarketDetail{}, fmt.Errorf("market_service: polymarket %s: %w", slug, err)
		}

		prices := m.Prices()
		yes, no := 0, -1
		if len(prices) > 0 {
			yes = prices[0]
		}
		if len(prices) > 1 && prices[1] > 0 {
			no = prices[1]
		}
		if no < 0 {
			no = 100 - yes
		}

		id := m.Slug
		if id == "" {
			id = slug
		}
		title := m.Question
		if title == "" {
			title = m.GroupItemTitle
		}
		if title == "" {
			title = "Untitled"
		}
		status := "closed"
		if m.Active {
			status = "open"
		}

		return domain.MarketDetail{
			Venue:     domain.VenuePolymarket,
			ID:        id,
			Title:     title,
			YesPrice:  yes,
			NoPrice:   no,
			Volume:    math.Round(float64(m.Volume)),
			Volume24h: math.Round(float64(m.Volume24h)),
			Status:    status,
			Link:      "https://polymarket.com/event/" + id,
			Extras: map[string]string{
				"liquidity": "$" + strconv.FormatFloat(math.Round(float64(m.LiquidityNum)), 'f', 0, 64),
				"end_date":  formatDate(m.EndDate),
			},
		}, nil
	})
}

// cached serves key from the cache, or calls load and back-fills the cache.
// Cache failures are logged and never fail the lookup.
func (s *MarketService) cached(ctx context.Context, key string, load func() (domain.MarketDetail, error)) (domain.MarketDetail, error) {
	if s.cache != nil {
		d, err := s.cache.Get(ctx, key)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market_service: cache get failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	d, err := load()
	if err != nil {
		return domain.MarketDetail{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, d, MarketDetailTTL); err != nil {
			s.logger.WarnContext(ctx, "market_service: cache set failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return d, nil
}

// formatDate renders an RFC 3339 timestamp as a date, or "N/A".
func formatDate(s string) string {
	if s == "" {
		return "N/A"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "N/A"
	}
	return t.UTC().Format("2006-01-02")
}
