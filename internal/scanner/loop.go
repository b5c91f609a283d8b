package scanner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// Run is the coordinating loop. Timer ticks, Trigger calls and Request calls
// all funnel into it, so cycles never overlap. Unless the scanner is manual,
// a cycle runs immediately and then every CheckInterval. Run returns when ctx
// is cancelled.
func (s *Scanner) Run(ctx context.Context) error {
	interval := s.Config().CheckInterval
	s.logger.InfoContext(ctx, "scanner: loop started",
		slog.Bool("manual", s.cfg.Manual),
		slog.Duration("interval", interval),
	)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if !s.cfg.Manual {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
		s.runLogged(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scanner: loop stopped")
			return ctx.Err()

		case <-tick:
			s.runLogged(ctx)

		case <-s.trigger:
			s.runLogged(ctx)

		case reply := <-s.requests:
			rep, err := s.RunCycle(ctx)
			reply <- cycleResult{report: rep, err: err}

		case <-s.reconfig:
			next := s.Config().CheckInterval
			if ticker != nil && next != interval {
				ticker.Reset(next)
				s.logger.InfoContext(ctx, "scanner: check interval changed",
					slog.Duration("from", interval),
					slog.Duration("to", next),
				)
			}
			interval = next
		}
	}
}

// runLogged runs a cycle whose report nobody waits for. Errors are already
// logged and counted by RunCycle.
func (s *Scanner) runLogged(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) && ctx.Err() == nil {
		s.logger.DebugContext(ctx, "scanner: background cycle returned error", slog.String("error", err.Error()))
	}
}

// Trigger asks the loop to run a cycle soon and returns immediately. Triggers
// arriving while one is already pending collapse into it.
func (s *Scanner) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Request asks the loop to run a cycle and waits for its report. It blocks
// until the loop accepts the request, so it must only be used while Run is
// active.
func (s *Scanner) Request(ctx context.Context) (Report, error) {
	reply := make(chan cycleResult, 1)
	select {
	case s.requests <- reply:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.report, res.err
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}
