package kalshi

import (
	"context"
	"fmt"
	"math"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// Canonicalize reduces each event to its highest-volume market. Events whose
// best market has no volume, and markets without a ticker, are skipped.
func Canonicalize(events []KalshiEvent) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(events))
	for _, ev := range events {
		best, ok := busiest(ev.Markets)
		if !ok || best.Volume <= 0 || best.Ticker == "" {
			continue
		}
		title := ev.Title
		if title == "" {
			title = best.Title
		}
		out = append(out, domain.Instrument{
			Venue:       domain.VenueKalshi,
			ID:          best.Ticker,
			Title:       title,
			YesPrice:    YesPrice(best),
			NoPrice:     cents(best.NoBid),
			Volume:      best.Volume,
			Volume24h:   best.Volume24H,
			Liquidity:   best.Liquidity,
			EventTicker: firstNonEmpty(best.EventTicker, ev.EventTicker),
		})
	}
	return out
}

// YesPrice is the best yes bid, falling back to the last traded price, in
// cents. 0 means no quote.
func YesPrice(m KalshiMarket) int {
	if p := cents(m.YesBid); p > 0 {
		return p
	}
	return cents(m.LastPrice)
}

// NoPrice is the best no bid in cents, falling back to the complement of
// YesPrice.
func NoPrice(m KalshiMarket) int {
	if p := cents(m.NoBid); p > 0 {
		return p
	}
	return 100 - YesPrice(m)
}

func busiest(markets []KalshiMarket) (KalshiMarket, bool) {
	if len(markets) == 0 {
		return KalshiMarket{}, false
	}
	best := markets[0]
	for _, m := range markets[1:] {
		if m.Volume > best.Volume {
			best = m
		}
	}
	return best, true
}

func cents(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	return min(int(math.Round(v)), 100)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Feed fetches the Kalshi event snapshot for the scanner.
type Feed struct {
	client *Client
	limit  int
}

// NewFeed creates a feed requesting limit events per cycle.
func NewFeed(client *Client, limit int) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{client: client, limit: limit}
}

// Venue returns domain.VenueKalshi.
func (f *Feed) Venue() domain.Venue { return domain.VenueKalshi }

// Fetch returns the canonical instruments of the current open events.
func (f *Feed) Fetch(ctx context.Context) ([]domain.Instrument, error) {
	events, err := f.client.GetEvents(ctx, f.limit)
	if err != nil {
		return nil, fmt.Errorf("kalshi feed: %w", err)
	}
	return Canonicalize(events), nil
}
