package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/notify"
)

// arbTitleLen is the number of title characters kept in an arbitrage alert's
// display name.
const arbTitleLen = 40

// Notifier delivers human-readable notifications.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// CreateRequest describes a manual price alert.
type CreateRequest struct {
	MarketID    string `json:"market_id"`
	MarketName  string `json:"market_name"`
	Condition   string `json:"condition"`
	TargetPrice int    `json:"target_price"`
}

// Service owns the alert list: it is the Bridge's sink, answers its pending
// check, and manages manual alerts.
type Service struct {
	store    domain.AlertStore
	bus      domain.SignalBus
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an alert service. bus and notifier may be nil.
func NewService(store domain.AlertStore, bus domain.SignalBus, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "alerts")),
		now:      time.Now,
	}
}

// Append stores ev as an already-triggered arbitrage alert, publishes it and
// sends a notification. Only the store write can fail the call.
func (s *Service) Append(ctx context.Context, ev domain.AlertEvent) error {
	at := ev.CreatedAt
	if at.IsZero() {
		at = s.now()
	}
	a := domain.Alert{
		ID:          uuid.NewString(),
		MarketID:    domain.ArbMarketID,
		MarketName:  fmt.Sprintf("ARB: %s (%d¢)", truncate(ev.Title, arbTitleLen), ev.Spread),
		RefID:       ev.CounterpartID,
		Condition:   domain.ConditionSpread,
		TargetPrice: ev.Spread,
		Triggered:   true,
		TriggeredAt: &at,
		CreatedAt:   at,
		Arb: &domain.ArbData{
			OpportunityKey: ev.OpportunityKey,
			PriceA:         ev.PriceA,
			PriceB:         ev.PriceB,
			Direction:      ev.Direction.Label(),
			ProfitPer100:   ev.ProfitPer100,
		},
	}
	if err := s.store.Create(ctx, a); err != nil {
		return fmt.Errorf("alert: store arb alert: %w", err)
	}
	s.logger.InfoContext(ctx, "alerts: arb alert created",
		slog.String("key", ev.OpportunityKey),
		slog.Int("spread", ev.Spread),
	)
	s.announce(ctx, a, ev.Spread)
	return nil
}

// HasPending reports whether an un-triggered alert references refID.
func (s *Service) HasPending(ctx context.Context, refID string) (bool, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return false, fmt.Errorf("alert: list: %w", err)
	}
	for _, a := range alerts {
		if !a.Triggered && a.RefID == refID {
			return true, nil
		}
	}
	return false, nil
}

// Create validates and stores a manual price alert.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Alert, error) {
	req.MarketID = strings.TrimSpace(req.MarketID)
	req.Condition = strings.ToLower(strings.TrimSpace(req.Condition))
	switch {
	case req.MarketID == "":
		return domain.Alert{}, fmt.Errorf("%w: market_id is required", domain.ErrInvalidAlert)
	case req.Condition != domain.ConditionAbove && req.Condition != domain.ConditionBelow:
		return domain.Alert{}, fmt.Errorf("%w: condition must be above or below", domain.ErrInvalidAlert)
	case req.TargetPrice < 1 || req.TargetPrice > 99:
		return domain.Alert{}, fmt.Errorf("%w: target_price must be 1-99", domain.ErrInvalidAlert)
	}
	name := strings.TrimSpace(req.MarketName)
	if name == "" {
		name = req.MarketID
	}

	a := domain.Alert{
		ID:          uuid.NewString(),
		MarketID:    req.MarketID,
		MarketName:  name,
		RefID:       req.MarketID,
		Condition:   req.Condition,
		TargetPrice: req.TargetPrice,
		CreatedAt:   s.now(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return domain.Alert{}, fmt.Errorf("alert: create: %w", err)
	}
	return a, nil
}

// Delete removes an alert.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("alert: delete %s: %w", id, err)
	}
	return nil
}

// List returns every alert, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Alert, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert: list: %w", err)
	}
	return alerts, nil
}

// Check evaluates every un-triggered manual alert against prices, keyed by
// instrument id, and marks the ones that hit as triggered. Alerts whose
// instrument is missing from prices are left alone.
func (s *Service) Check(ctx context.Context, prices map[string]int) ([]domain.Alert, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("alert: list: %w", err)
	}
	var fired []domain.Alert
	for _, a := range alerts {
		if a.Triggered || a.MarketID == domain.ArbMarketID {
			continue
		}
		price, ok := prices[a.MarketID]
		if !ok || !a.Hit(price) {
			continue
		}
		at := s.now()
		a.Triggered = true
		a.TriggeredAt = &at
		if err := s.store.Update(ctx, a); err != nil {
			return fired, fmt.Errorf("alert: mark triggered %s: %w", a.ID, err)
		}
		s.logger.InfoContext(ctx, "alerts: alert triggered",
			slog.String("market", a.MarketID),
			slog.Int("price", price),
			slog.String("condition", a.Condition),
			slog.Int("target", a.TargetPrice),
		)
		s.announce(ctx, a, price)
		fired = append(fired, a)
	}
	return fired, nil
}

func (s *Service) announce(ctx context.Context, a domain.Alert, price int) {
	if s.bus != nil {
		payload, err := json.Marshal(domain.Envelope{Type: notify.EventAlertTriggered, Time: s.now(), Data: a})
		if err == nil {
			err = s.bus.Publish(ctx, domain.ChannelAlerts, payload)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "alerts: publish failed", slog.String("error", err.Error()))
		}
	}
	if s.notifier != nil {
		title, msg := notify.AlertTriggered(a, price)
		if err := s.notifier.Notify(ctx, notify.EventAlertTriggered, title, msg); err != nil {
			s.logger.WarnContext(ctx, "alerts: notify failed", slog.String("error", err.Error()))
		}
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
