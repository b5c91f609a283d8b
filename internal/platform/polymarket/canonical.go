package polymarket

import (
	"context"
	"fmt"
	"math"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// Canonicalize takes the first market of each event. Events without a
// parseable non-zero yes price or without any slug are skipped.
func Canonicalize(events []APIEvent) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(events))
	for _, ev := range events {
		if len(ev.Markets) == 0 {
			continue
		}
		m := ev.Markets[0]
		prices := m.Prices()
		if len(prices) == 0 || prices[0] == 0 {
			continue
		}
		id := m.Slug
		if id == "" {
			id = ev.Slug
		}
		if id == "" {
			continue
		}

		vol := float64(m.Volume24h)
		if vol == 0 {
			vol = float64(m.Volume)
		}
		no := 0
		if len(prices) > 1 {
			no = prices[1]
		}
		out = append(out, domain.Instrument{
			Venue:     domain.VenuePolymarket,
			ID:        id,
			Title:     Title(ev, m),
			YesPrice:  prices[0],
			NoPrice:   no,
			Volume:    math.Round(vol),
			Volume24h: math.Round(float64(m.Volume24h)),
			Liquidity: math.Round(float64(m.LiquidityNum)),
		})
	}
	return out
}

// Title picks the display title of an event's market.
func Title(ev APIEvent, m APIMarket) string {
	switch {
	case ev.Title != "":
		return ev.Title
	case m.Question != "":
		return m.Question
	case m.GroupItemTitle != "":
		return m.GroupItemTitle
	default:
		return "Untitled"
	}
}

func toCents(p float64) int {
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	return min(int(math.Round(p*100)), 100)
}

// Feed fetches the Polymarket event snapshot for the scanner.
type Feed struct {
	client *GammaClient
	limit  int
}

// NewFeed creates a feed requesting limit events per cycle.
func NewFeed(client *GammaClient, limit int) *Feed {
	if limit <= 0 {
		limit = 50
	}
	return &Feed{client: client, limit: limit}
}

// Venue returns domain.VenuePolymarket.
func (f *Feed) Venue() domain.Venue { return domain.VenuePolymarket }

// Fetch returns the canonical instruments of the top events by 24h volume.
func (f *Feed) Fetch(ctx context.Context) ([]domain.Instrument, error) {
	events, err := f.client.GetEvents(ctx, f.limit)
	if err != nil {
		return nil, fmt.Errorf("polymarket feed: %w", err)
	}
	return Canonicalize(events), nil
}
