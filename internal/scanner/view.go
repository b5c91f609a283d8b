package scanner

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/history"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/matching"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/service"
)

// View list sizes.
const (
	ViewKalshiLimit     = 20
	ViewPolymarketLimit = 15
)

// Report is the outcome of one scan cycle.
type Report struct {
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration_ns"`
	Config     domain.ScanConfig       `json:"config"`
	Kalshi     []domain.Quote          `json:"kalshi"`
	Polymarket []domain.Quote          `json:"polymarket"`
	FeedErrors map[domain.Venue]string `json:"feed_errors,omitempty"`

	// Pairs are all similar cross-venue pairs, regardless of spread.
	Pairs   []domain.MatchCandidate `json:"pairs"`
	Opened  []domain.Opportunity    `json:"opened"`
	Closed  []domain.Opportunity    `json:"closed"`
	Evicted []domain.Opportunity    `json:"evicted,omitempty"`
	Open    int                     `json:"open"`

	// Inconclusive is set when a venue snapshot was empty and the ledger was
	// left untouched.
	Inconclusive    bool `json:"inconclusive"`
	AlertsEmitted   int  `json:"alerts_emitted"`
	AlertsTriggered int  `json:"alerts_triggered"`
}

// Summary is the compact cycle digest published on the scans channel.
type Summary struct {
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Kalshi       int       `json:"kalshi"`
	Polymarket   int       `json:"polymarket"`
	Pairs        int       `json:"pairs"`
	Opened       int       `json:"opened"`
	Closed       int       `json:"closed"`
	Open         int       `json:"open"`
	Inconclusive bool      `json:"inconclusive"`
}

// Summary digests the report.
func (r Report) Summary() Summary {
	return Summary{
		StartedAt:    r.StartedAt,
		DurationMS:   r.Duration.Milliseconds(),
		Kalshi:       len(r.Kalshi),
		Polymarket:   len(r.Polymarket),
		Pairs:        len(r.Pairs),
		Opened:       len(r.Opened),
		Closed:       len(r.Closed),
		Open:         r.Open,
		Inconclusive: r.Inconclusive,
	}
}

// View is the interactive dashboard built from the latest cycle.
type View struct {
	GeneratedAt   time.Time               `json:"generated_at"`
	ScannedAt     time.Time               `json:"scanned_at"`
	Kalshi        []domain.Quote          `json:"kalshi"`
	Polymarket    []domain.Quote          `json:"polymarket"`
	Candidates    []domain.MatchCandidate `json:"candidates"`
	Opportunities []domain.Opportunity    `json:"opportunities"`
	Movers        []domain.Mover          `json:"movers"`
	Stats         domain.MarketStats      `json:"stats"`
	Watchlist     []domain.WatchEntry     `json:"watchlist"`
	Alerts        []domain.Alert          `json:"alerts"`
	FeedErrors    map[domain.Venue]string `json:"feed_errors,omitempty"`
}

// View builds the dashboard from the last cycle's report. Candidates are
// recomputed over the displayed lists at the view threshold. Watchlist and
// alert read failures leave those sections empty.
func (s *Scanner) View(ctx context.Context) View {
	rep, _ := s.Last()
	cfg := s.Config()

	v := View{
		GeneratedAt:   s.now().UTC(),
		ScannedAt:     rep.StartedAt,
		Kalshi:        TopKalshi(rep.Kalshi, ViewKalshiLimit),
		Polymarket:    head(rep.Polymarket, ViewPolymarketLimit),
		Opportunities: s.ledger.Open(),
		FeedErrors:    rep.FeedErrors,
	}
	for i := range v.Kalshi {
		v.Kalshi[i].Sparkline = history.Sparkline(s.history.Series(v.Kalshi[i].HistoryKey()))
	}
	for i := range v.Polymarket {
		v.Polymarket[i].Sparkline = history.Sparkline(s.history.Series(v.Polymarket[i].HistoryKey()))
	}

	v.Candidates = matching.Match(
		quoted(instruments(v.Kalshi)), quoted(instruments(v.Polymarket)),
		cfg.SimilarityThreshold, cfg.ViewMinSpread,
	)
	matching.SortBySpread(v.Candidates)

	all := append(slices.Clone(v.Kalshi), v.Polymarket...)
	v.Movers = history.TopMovers(all, history.DefaultTopMovers)
	v.Stats = Stats(v.Kalshi, v.Polymarket)

	quotes := make(map[string]domain.Quote, len(all))
	for _, q := range all {
		if _, ok := quotes[q.ID]; !ok {
			quotes[q.ID] = q
		}
	}
	if s.cfg.Watchlist != nil {
		if items, err := s.cfg.Watchlist.List(ctx); err == nil {
			v.Watchlist = service.Enrich(items, quotes)
		} else {
			s.logger.WarnContext(ctx, "scanner: view watchlist failed", slog.String("error", err.Error()))
		}
	}
	if s.cfg.Alerts != nil {
		if alerts, err := s.cfg.Alerts.List(ctx); err == nil {
			v.Alerts = alerts
		} else {
			s.logger.WarnContext(ctx, "scanner: view alerts failed", slog.String("error", err.Error()))
		}
	}
	return v
}

// Movers returns the top movers of the last cycle across both venues.
func (s *Scanner) Movers(k int) []domain.Mover {
	rep, _ := s.Last()
	return history.TopMovers(append(slices.Clone(rep.Kalshi), rep.Polymarket...), k)
}

// TopKalshi orders quotes by volume24h*10 + volume, highest first, and keeps
// the first n.
func TopKalshi(quotes []domain.Quote, n int) []domain.Quote {
	out := slices.Clone(quotes)
	slices.SortStableFunc(out, func(a, b domain.Quote) int {
		return cmp.Compare(b.Volume24h*10+b.Volume, a.Volume24h*10+a.Volume)
	})
	return head(out, n)
}

// Stats aggregates the displayed lists: instrument count, total 24h volume
// (Kalshi 24h volume plus Polymarket volume) and the rounded average yes
// price.
func Stats(kalshiQuotes, polyQuotes []domain.Quote) domain.MarketStats {
	vol := decimal.Zero
	sum, n := 0, 0
	for _, q := range kalshiQuotes {
		vol = vol.Add(decimal.NewFromFloat(q.Volume24h))
		sum += q.YesPrice
		n++
	}
	for _, q := range polyQuotes {
		vol = vol.Add(decimal.NewFromFloat(q.Volume))
		sum += q.YesPrice
		n++
	}
	st := domain.MarketStats{TotalMarkets: n, TotalVolume24h: vol.Round(0).String()}
	if n > 0 {
		st.AvgPrice = int(decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(n))).Round(0).IntPart())
	}
	return st
}

func instruments(quotes []domain.Quote) []domain.Instrument {
	out := make([]domain.Instrument, len(quotes))
	for i, q := range quotes {
		out[i] = q.Instrument
	}
	return out
}

func head[T any](s []T, n int) []T {
	out := slices.Clone(s)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
