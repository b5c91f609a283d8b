// Package alert turns newly opened opportunities into one-shot alerts and
// manages the user's manual price alerts.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// Sink receives alert events. It is append-only from the bridge's side.
type Sink interface {
	Append(ctx context.Context, ev domain.AlertEvent) error
}

// PendingChecker reports whether an un-triggered alert already references an
// instrument id.
type PendingChecker interface {
	HasPending(ctx context.Context, refID string) (bool, error)
}

// Bridge emits one AlertEvent per newly opened opportunity. Events are never
// retracted when the opportunity later closes.
type Bridge struct {
	sink    Sink
	pending PendingChecker
	now     func() time.Time
}

// NewBridge creates a Bridge writing to sink. pending may be nil, in which
// case no suppression check is made.
func NewBridge(sink Sink, pending PendingChecker) *Bridge {
	return &Bridge{sink: sink, pending: pending, now: time.Now}
}

// WithClock sets the time source stamped on emitted events.
func (b *Bridge) WithClock(now func() time.Time) *Bridge {
	if now != nil {
		b.now = now
	}
	return b
}

// Emit appends an event for every opportunity in opened whose spread is at
// least cfg.MinSpread, unless cfg.AutoAlert is off or an un-triggered alert
// already references the opportunity's venue-A id. It returns the events that
// were appended; a failure on one opportunity does not stop the others.
func (b *Bridge) Emit(ctx context.Context, opened []domain.Opportunity, cfg domain.ScanConfig) ([]domain.AlertEvent, error) {
	if !cfg.AutoAlert || len(opened) == 0 {
		return nil, nil
	}

	var (
		emitted []domain.AlertEvent
		errs    []error
	)
	for _, o := range opened {
		if !o.IsOpen() || o.Spread < cfg.MinSpread {
			continue
		}
		if b.pending != nil {
			held, err := b.pending.HasPending(ctx, o.IDA)
			if err != nil {
				errs = append(errs, fmt.Errorf("alert: pending check %s: %w", o.Key, err))
				continue
			}
			if held {
				continue
			}
		}
		ev := EventFor(o, b.now())
		if err := b.sink.Append(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("alert: append %s: %w", o.Key, err))
			continue
		}
		emitted = append(emitted, ev)
	}
	return emitted, errors.Join(errs...)
}

// EventFor builds the alert event for an opportunity.
func EventFor(o domain.Opportunity, at time.Time) domain.AlertEvent {
	return domain.AlertEvent{
		OpportunityKey: o.Key,
		CounterpartID:  o.IDA,
		Title:          o.TitleA,
		Spread:         o.Spread,
		Direction:      o.Direction,
		PriceA:         o.PriceA,
		PriceB:         o.PriceB,
		ProfitPer100:   o.ProfitPer100,
		CreatedAt:      at,
	}
}
