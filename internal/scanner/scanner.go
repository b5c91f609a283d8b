// Package scanner runs the scan cycle: it fetches both venue snapshots,
// records price history, matches instruments across venues, advances the
// opportunity ledger and fans the results out to alerts, the signal bus,
// notifications, metrics and the archive.
//
// Every cycle runs through one Scanner, which serializes them in-process; a
// LockManager extends that across processes.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/alert"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/history"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/ledger"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/matching"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/metrics"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/notify"
)

// CycleLockKey is the distributed lock held for the duration of a cycle.
const CycleLockKey = "scan:cycle"

// Feed supplies one venue's canonical snapshot.
type Feed interface {
	Venue() domain.Venue
	Fetch(ctx context.Context) ([]domain.Instrument, error)
}

// Config wires a Scanner. Kalshi, Polymarket, Ledger, History and Alerts are
// required; everything else may be left nil.
type Config struct {
	Kalshi     Feed
	Polymarket Feed

	Ledger     domain.OpportunityStore
	History    domain.PriceHistoryStore
	ScanConfig domain.ScanConfigStore
	Watchlist  domain.WatchlistStore
	Audit      domain.AuditStore
	Alerts     *alert.Service
	Locks      domain.LockManager
	Bus        domain.SignalBus
	Archiver   domain.Archiver
	Notifier   alert.Notifier

	Scan         domain.ScanConfig
	FetchTimeout time.Duration
	LockTTL      time.Duration
	LedgerCap    int
	HistoryCap   int

	// Manual disables the timer; cycles then run only on Trigger or Request.
	Manual bool

	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Scanner owns the opportunity ledger and the price history of one process.
type Scanner struct {
	cfg     Config
	ledger  *ledger.Ledger
	history *history.Store
	bridge  *alert.Bridge
	logger  *slog.Logger
	now     func() time.Time

	cycleMu sync.Mutex

	mu      sync.RWMutex
	scan    domain.ScanConfig
	last    Report
	hasLast bool

	trigger  chan struct{}
	requests chan chan cycleResult
	reconfig chan struct{}
}

type cycleResult struct {
	report Report
	err    error
}

// New creates a Scanner. It does not touch the stores; call Load before the
// first cycle to restore persisted state.
func New(cfg Config) *Scanner {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	var pending alert.PendingChecker
	if cfg.Alerts != nil {
		pending = cfg.Alerts
	}
	return &Scanner{
		cfg:      cfg,
		ledger:   ledger.New(cfg.LedgerCap),
		history:  history.New(cfg.HistoryCap),
		bridge:   alert.NewBridge(cfg.Alerts, pending).WithClock(cfg.Clock),
		logger:   cfg.Logger.With(slog.String("component", "scanner")),
		now:      cfg.Clock,
		scan:     cfg.Scan,
		trigger:  make(chan struct{}, 1),
		requests: make(chan chan cycleResult),
		reconfig: make(chan struct{}, 1),
	}
}

// Load restores the ledger, the price history and any persisted scan config.
// Read failures are logged and leave that part empty.
func (s *Scanner) Load(ctx context.Context) {
	s.sync(ctx)

	if s.cfg.ScanConfig == nil {
		return
	}
	saved, err := s.cfg.ScanConfig.Get(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		s.logger.WarnContext(ctx, "scanner: load scan config failed, using defaults",
			slog.String("error", err.Error()),
		)
	case saved.Validate() != nil:
		s.logger.WarnContext(ctx, "scanner: ignoring invalid persisted scan config",
			slog.String("error", saved.Validate().Error()),
		)
	default:
		s.mu.Lock()
		s.scan = saved
		s.mu.Unlock()
	}
}

// sync reloads the ledger and price history from their stores so a cycle
// starts from the last committed state, including writes by other processes.
func (s *Scanner) sync(ctx context.Context) {
	if records, err := s.cfg.Ledger.Load(ctx); err != nil {
		s.logger.WarnContext(ctx, "scanner: load ledger failed, keeping current state",
			slog.String("error", err.Error()),
		)
	} else {
		s.ledger.Load(records)
	}

	if series, err := s.cfg.History.Load(ctx); err != nil {
		s.logger.WarnContext(ctx, "scanner: load price history failed, keeping current state",
			slog.String("error", err.Error()),
		)
	} else {
		s.history.Load(series)
	}
}

// Config returns the live scan configuration.
func (s *Scanner) Config() domain.ScanConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan
}

// SetConfig validates, persists and applies a new scan configuration. A
// running loop picks up a changed check interval immediately.
func (s *Scanner) SetConfig(ctx context.Context, cfg domain.ScanConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.cfg.ScanConfig != nil {
		if err := s.cfg.ScanConfig.Save(ctx, cfg); err != nil {
			return fmt.Errorf("scanner: save scan config: %w", err)
		}
	}

	s.mu.Lock()
	s.scan = cfg
	s.mu.Unlock()

	select {
	case s.reconfig <- struct{}{}:
	default:
	}

	s.audit(ctx, "scan.config", map[string]any{
		"min_spread":           cfg.MinSpread,
		"view_min_spread":      cfg.ViewMinSpread,
		"auto_alert":           cfg.AutoAlert,
		"check_interval":       cfg.CheckInterval.String(),
		"similarity_threshold": cfg.SimilarityThreshold,
	})
	s.logger.InfoContext(ctx, "scanner: scan config updated",
		slog.Int("min_spread", cfg.MinSpread),
		slog.Bool("auto_alert", cfg.AutoAlert),
		slog.Duration("check_interval", cfg.CheckInterval),
		slog.Float64("similarity_threshold", cfg.SimilarityThreshold),
	)
	return nil
}

// Ledger returns the ledger records, most recent detection first, filtered by
// status and limited as ledger.List does.
func (s *Scanner) Ledger(status domain.OpportunityStatus, limit int) []domain.Opportunity {
	return s.ledger.List(status, limit)
}

// Open returns the open opportunities, oldest detection first.
func (s *Scanner) Open() []domain.Opportunity {
	return s.ledger.Open()
}

// Tracked reports how many ledger records and price series are held in
// memory.
func (s *Scanner) Tracked() (records, series int) {
	return s.ledger.Len(), len(s.history.Keys())
}

// Series returns the price history of a history key ("k:<ticker>" or
// "p:<slug>").
func (s *Scanner) Series(key string) []domain.PriceSample {
	return s.history.Series(key)
}

// Last returns the report of the most recent completed cycle.
func (s *Scanner) Last() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

// RunCycle performs one scan cycle and returns its report. Concurrent calls
// are serialized. A cycle skipped because another process holds the cycle
// lock returns an error wrapping domain.ErrLockHeld. The only other error is
// a failure to persist the ledger or the price history.
func (s *Scanner) RunCycle(ctx context.Context) (Report, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := s.now()
	cfg := s.Config()

	if s.cfg.Locks != nil {
		unlock, err := s.cfg.Locks.Acquire(ctx, CycleLockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				metrics.ScanCyclesTotal.WithLabelValues("locked").Inc()
				s.logger.InfoContext(ctx, "scanner: cycle lock held elsewhere, skipping")
			} else {
				metrics.ScanCyclesTotal.WithLabelValues("error").Inc()
			}
			return Report{}, fmt.Errorf("scanner: acquire cycle lock: %w", err)
		}
		defer unlock()
	}

	s.sync(ctx)

	rep := Report{StartedAt: start.UTC(), Config: cfg, FeedErrors: map[domain.Venue]string{}}
	kalshiSnap, polySnap := s.fetch(ctx, rep.FeedErrors)

	// History is recorded for every venue that returned data, even when the
	// cycle is inconclusive for the ledger.
	rep.Kalshi = s.quote(kalshiSnap, start)
	rep.Polymarket = s.quote(polySnap, start)
	histErr := s.persistHistory(ctx, kalshiSnap, polySnap, start)

	kalshiQuoted, polyQuoted := quoted(kalshiSnap), quoted(polySnap)
	rep.Pairs = matching.Pairs(kalshiQuoted, polyQuoted, cfg.SimilarityThreshold)
	metrics.MatchCandidates.Set(float64(len(rep.Pairs)))

	var saveErr error
	if len(kalshiQuoted) == 0 || len(polyQuoted) == 0 {
		rep.Inconclusive = true
		s.logger.WarnContext(ctx, "scanner: venue snapshot empty, skipping lifecycle update",
			slog.Int("kalshi", len(kalshiQuoted)),
			slog.Int("polymarket", len(polyQuoted)),
		)
	} else {
		tr := s.ledger.Apply(rep.Pairs, cfg.MinSpread, start.UTC())
		rep.Opened, rep.Closed, rep.Evicted = tr.Opened, tr.Closed, tr.Evicted
		if !tr.Empty() {
			if err := s.cfg.Ledger.Save(ctx, s.ledger.Records()); err != nil {
				saveErr = fmt.Errorf("scanner: save ledger: %w", err)
			}
		}
	}

	if err := errors.Join(saveErr, histErr); err != nil {
		rep.Duration = s.now().Sub(start)
		metrics.ScanCyclesTotal.WithLabelValues("error").Inc()
		metrics.ScanDuration.Observe(rep.Duration.Seconds())
		s.logger.ErrorContext(ctx, "scanner: cycle failed", slog.String("error", err.Error()))
		s.notify(ctx, notify.EventScanError, func() (string, string) { return notify.ScanError(err) })
		return rep, err
	}

	s.fanOut(ctx, &rep, cfg)

	rep.Open = len(s.ledger.Open())
	rep.Duration = s.now().Sub(start)

	result := "ok"
	if rep.Inconclusive {
		result = "skipped"
	}
	metrics.ScanCyclesTotal.WithLabelValues(result).Inc()
	metrics.ScanDuration.Observe(rep.Duration.Seconds())
	metrics.OpportunitiesOpen.Set(float64(rep.Open))
	metrics.OpportunityTransitions.WithLabelValues("opened").Add(float64(len(rep.Opened)))
	metrics.OpportunityTransitions.WithLabelValues("closed").Add(float64(len(rep.Closed)))
	metrics.OpportunityTransitions.WithLabelValues("evicted").Add(float64(len(rep.Evicted)))

	s.mu.Lock()
	s.last, s.hasLast = rep, true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scanner: cycle complete",
		slog.Int("kalshi", len(rep.Kalshi)),
		slog.Int("polymarket", len(rep.Polymarket)),
		slog.Int("pairs", len(rep.Pairs)),
		slog.Int("opened", len(rep.Opened)),
		slog.Int("closed", len(rep.Closed)),
		slog.Int("open", rep.Open),
		slog.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// fetch loads both venue snapshots concurrently under the fetch timeout. A
// failed or timed out venue yields an empty snapshot and an entry in errs.
func (s *Scanner) fetch(ctx context.Context, errs map[domain.Venue]string) (kalshiSnap, polySnap []domain.Instrument) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var (
		g    errgroup.Group
		kErr error
		pErr error
	)
	g.Go(func() error {
		kalshiSnap, kErr = s.cfg.Kalshi.Fetch(fctx)
		return nil
	})
	g.Go(func() error {
		polySnap, pErr = s.cfg.Polymarket.Fetch(fctx)
		return nil
	})
	_ = g.Wait()

	for _, r := range []struct {
		feed Feed
		snap *[]domain.Instrument
		err  error
	}{
		{s.cfg.Kalshi, &kalshiSnap, kErr},
		{s.cfg.Polymarket, &polySnap, pErr},
	} {
		venue := r.feed.Venue()
		if r.err != nil {
			*r.snap = nil
			errs[venue] = r.err.Error()
			metrics.FeedErrorsTotal.WithLabelValues(string(venue)).Inc()
			s.logger.WarnContext(ctx, "scanner: venue fetch failed",
				slog.String("venue", string(venue)),
				slog.String("error", r.err.Error()),
			)
		}
		metrics.FeedInstruments.WithLabelValues(string(venue)).Set(float64(len(*r.snap)))
	}
	return kalshiSnap, polySnap
}

// quote computes each instrument's delta against the stored history, then
// appends the current price.
func (s *Scanner) quote(snap []domain.Instrument, at time.Time) []domain.Quote {
	out := make([]domain.Quote, len(snap))
	for i, inst := range snap {
		key := inst.HistoryKey()
		out[i] = domain.Quote{Instrument: inst, Delta: s.history.Delta(key, inst.YesPrice)}
		s.history.Append(key, inst.YesPrice, at.UTC())
	}
	return out
}

func (s *Scanner) persistHistory(ctx context.Context, kalshiSnap, polySnap []domain.Instrument, at time.Time) error {
	samples := make(map[string]domain.PriceSample, len(kalshiSnap)+len(polySnap))
	for _, snap := range [][]domain.Instrument{kalshiSnap, polySnap} {
		for _, inst := range snap {
			samples[inst.HistoryKey()] = domain.PriceSample{T: at.UTC(), P: inst.YesPrice}
		}
	}
	if err := s.cfg.History.Append(ctx, samples, s.history.Cap()); err != nil {
		return fmt.Errorf("scanner: save price history: %w", err)
	}
	return nil
}

// fanOut runs the cycle's side effects. None of them can fail the cycle.
func (s *Scanner) fanOut(ctx context.Context, rep *Report, cfg domain.ScanConfig) {
	if s.cfg.Alerts != nil {
		events, err := s.bridge.Emit(ctx, rep.Opened, cfg)
		if err != nil {
			s.logger.WarnContext(ctx, "scanner: alert bridge failed", slog.String("error", err.Error()))
		}
		rep.AlertsEmitted = len(events)
		metrics.AlertsTotal.WithLabelValues("arb").Add(float64(len(events)))

		fired, err := s.cfg.Alerts.Check(ctx, prices(rep))
		if err != nil {
			s.logger.WarnContext(ctx, "scanner: alert check failed", slog.String("error", err.Error()))
		}
		rep.AlertsTriggered = len(fired)
		metrics.AlertsTotal.WithLabelValues("manual").Add(float64(len(fired)))
	}

	if s.cfg.Archiver != nil && len(rep.Evicted) > 0 {
		path, err := s.cfg.Archiver.ArchiveOpportunities(ctx, rep.Evicted, rep.StartedAt)
		if err != nil {
			s.logger.WarnContext(ctx, "scanner: archive evicted opportunities failed",
				slog.Int("count", len(rep.Evicted)),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "scanner: archived evicted opportunities",
				slog.String("path", path),
				slog.Int("count", len(rep.Evicted)),
			)
		}
	}

	for _, o := range rep.Opened {
		s.publish(ctx, domain.ChannelOpportunities, notify.EventOpportunityOpened, o, true)
		s.notify(ctx, notify.EventOpportunityOpened, func() (string, string) { return notify.OpportunityOpened(o) })
	}
	for _, o := range rep.Closed {
		s.publish(ctx, domain.ChannelOpportunities, notify.EventOpportunityClosed, o, true)
		s.notify(ctx, notify.EventOpportunityClosed, func() (string, string) { return notify.OpportunityClosed(o) })
	}
	s.publish(ctx, domain.ChannelScans, "scan_complete", rep.Summary(), false)

	if !rep.Inconclusive && (len(rep.Opened) > 0 || len(rep.Closed) > 0 || len(rep.Evicted) > 0) {
		s.audit(ctx, "scan.transitions", map[string]any{
			"opened":  len(rep.Opened),
			"closed":  len(rep.Closed),
			"evicted": len(rep.Evicted),
		})
	}
}

// publish sends an envelope on channel and, for durable events, appends it to
// the opportunity stream.
func (s *Scanner) publish(ctx context.Context, channel, typ string, data any, durable bool) {
	if s.cfg.Bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Envelope{Type: typ, Time: s.now().UTC(), Data: data})
	if err != nil {
		s.logger.WarnContext(ctx, "scanner: marshal bus message failed", slog.String("error", err.Error()))
		return
	}
	if err := s.cfg.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "scanner: publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if !durable {
		return
	}
	if err := s.cfg.Bus.StreamAppend(ctx, domain.StreamOpportunities, payload); err != nil {
		s.logger.WarnContext(ctx, "scanner: stream append failed", slog.String("error", err.Error()))
	}
}

func (s *Scanner) notify(ctx context.Context, event string, format func() (string, string)) {
	if s.cfg.Notifier == nil {
		return
	}
	title, msg := format()
	if err := s.cfg.Notifier.Notify(ctx, event, title, msg); err != nil {
		s.logger.WarnContext(ctx, "scanner: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Scanner) audit(ctx context.Context, event string, detail map[string]any) {
	if s.cfg.Audit == nil {
		return
	}
	if err := s.cfg.Audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "scanner: audit log failed", slog.String("error", err.Error()))
	}
}

// quoted drops instruments without a reliable price.
func quoted(snap []domain.Instrument) []domain.Instrument {
	out := make([]domain.Instrument, 0, len(snap))
	for _, inst := range snap {
		if inst.YesPrice > 0 {
			out = append(out, inst)
		}
	}
	return out
}

// prices maps instrument ids to their current yes price for alert checks.
func prices(rep *Report) map[string]int {
	out := make(map[string]int, len(rep.Kalshi)+len(rep.Polymarket))
	for _, qs := range [][]domain.Quote{rep.Kalshi, rep.Polymarket} {
		for _, q := range qs {
			if q.YesPrice > 0 {
				out[q.ID] = q.YesPrice
			}
		}
	}
	return out
}

// HistorySnapshot returns a copy of every price series.
func (s *Scanner) HistorySnapshot() map[string][]domain.PriceSample {
	return s.history.Snapshot()
}
