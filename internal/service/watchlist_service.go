package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// WatchlistService manages the user's pinned instruments.
type WatchlistService struct {
	store  domain.WatchlistStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewWatchlistService creates a WatchlistService. audit may be nil.
func NewWatchlistService(store domain.WatchlistStore, audit domain.AuditStore, logger *slog.Logger) *WatchlistService {
	return &WatchlistService{store: store, audit: audit, logger: logger}
}

// Add pins an instrument. Adding an id that is already present is a no-op
// and reports added=false. Source defaults to "unknown" and link to "#".
func (s *WatchlistService) Add(ctx context.Context, item domain.WatchItem) (domain.WatchItem, bool, error) {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return domain.WatchItem{}, false, errors.New("watchlist: id is required")
	}
	if item.Title == "" {
		item.Title = item.ID
	}
	if item.Source == "" {
		item.Source = "unknown"
	}
	if item.Link == "" {
		item.Link = "#"
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now().UTC()
	}

	added, err := s.store.Add(ctx, item)
	if err != nil {
		return domain.WatchItem{}, false, fmt.Errorf("watchlist: add %s: %w", item.ID, err)
	}
	if added {
		s.record(ctx, "watchlist.add", item.ID)
	}
	return item, added, nil
}

// Remove unpins an instrument.
func (s *WatchlistService) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("watchlist: remove %s: %w", id, err)
	}
	s.record(ctx, "watchlist.remove", id)
	return nil
}

// List returns the pinned items.
func (s *WatchlistService) List(ctx context.Context) ([]domain.WatchItem, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("watchlist: list: %w", err)
	}
	return items, nil
}

// Enrich attaches the latest yes price and delta of each pinned instrument.
// quotes is keyed by instrument id; items without a quote keep nil fields.
func Enrich(items []domain.WatchItem, quotes map[string]domain.Quote) []domain.WatchEntry {
	out := make([]domain.WatchEntry, len(items))
	for i, it := range items {
		out[i] = domain.WatchEntry{WatchItem: it}
		if q, ok := quotes[it.ID]; ok {
			price := q.YesPrice
			out[i].YesPrice = &price
			out[i].Delta = q.Delta
		}
	}
	return out
}

func (s *WatchlistService) record(ctx context.Context, event, id string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, map[string]any{"id": id}); err != nil {
		s.logger.WarnContext(ctx, "watchlist: audit log failed", slog.String("error", err.Error()))
	}
}
