// Package memory implements the domain stores in process memory. It backs the
// "memory" storage backend and the package tests; nothing survives a restart.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// OpportunityStore keeps the last saved ledger.
type OpportunityStore struct {
	mu      sync.RWMutex
	records []domain.Opportunity
	saves   int
	failErr error
}

// NewOpportunityStore creates an empty store.
func NewOpportunityStore() *OpportunityStore { return &OpportunityStore{} }

// Load returns a copy of the saved records.
func (s *OpportunityStore) Load(_ context.Context) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

// Save replaces the saved records. It fails with the error set by FailSaves.
func (s *OpportunityStore) Save(_ context.Context, records []domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.records = slices.Clone(records)
	s.saves++
	return nil
}

// FailSaves makes subsequent saves return err; nil restores normal saving.
func (s *OpportunityStore) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Saves returns the number of successful saves.
func (s *OpportunityStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// PriceHistoryStore keeps capped price series per key.
type PriceHistoryStore struct {
	mu     sync.RWMutex
	series map[string][]domain.PriceSample
}

// NewPriceHistoryStore creates an empty store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{series: make(map[string][]domain.PriceSample)}
}

// Load returns a deep copy of every series.
func (s *PriceHistoryStore) Load(_ context.Context) (map[string][]domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.PriceSample, len(s.series))
	for k, v := range s.series {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

// Append pushes one sample per key and keeps the most recent cap samples.
func (s *PriceHistoryStore) Append(_ context.Context, samples map[string]domain.PriceSample, cap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, smp := range samples {
		ser := append(s.series[k], smp)
		if n := len(ser) - cap; cap > 0 && n > 0 {
			ser = slices.Delete(ser, 0, n)
		}
		s.series[k] = ser
	}
	return nil
}

// ScanConfigStore keeps the saved scan configuration.
type ScanConfigStore struct {
	mu  sync.RWMutex
	cfg *domain.ScanConfig
}

// NewScanConfigStore creates an empty store.
func NewScanConfigStore() *ScanConfigStore { return &ScanConfigStore{} }

// Get returns the saved configuration or domain.ErrNotFound.
func (s *ScanConfigStore) Get(_ context.Context) (domain.ScanConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return domain.ScanConfig{}, domain.ErrNotFound
	}
	return *s.cfg, nil
}

// Save stores cfg.
func (s *ScanConfigStore) Save(_ context.Context, cfg domain.ScanConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &cfg
	return nil
}

// AlertStore keeps alerts by id.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]domain.Alert
}

// NewAlertStore creates an empty store.
func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[string]domain.Alert)}
}

// Create stores a, failing with domain.ErrAlreadyExists on a duplicate id.
func (s *AlertStore) Create(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; ok {
		return fmt.Errorf("alert %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	s.alerts[a.ID] = a
	return nil
}

// Update replaces an existing alert.
func (s *AlertStore) Update(_ context.Context, a domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return fmt.Errorf("alert %s: %w", a.ID, domain.ErrNotFound)
	}
	s.alerts[a.ID] = a
	return nil
}

// Delete removes an alert.
func (s *AlertStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
	}
	delete(s.alerts, id)
	return nil
}

// List returns every alert, newest first.
func (s *AlertStore) List(_ context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.alerts))
	slices.SortFunc(out, func(a, b domain.Alert) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// WatchlistStore keeps watchlist items in insertion order.
type WatchlistStore struct {
	mu    sync.RWMutex
	items []domain.WatchItem
}

// NewWatchlistStore creates an empty store.
func NewWatchlistStore() *WatchlistStore { return &WatchlistStore{} }

// Add appends item unless its id is already present.
func (s *WatchlistStore) Add(_ context.Context, item domain.WatchItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.ContainsFunc(s.items, func(w domain.WatchItem) bool { return w.ID == item.ID }) {
		return false, nil
	}
	s.items = append(s.items, item)
	return true, nil
}

// Remove deletes the item with id. Removing a missing id is not an error.
func (s *WatchlistStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = slices.DeleteFunc(s.items, func(w domain.WatchItem) bool { return w.ID == id })
	return nil
}

// List returns the items in insertion order.
func (s *WatchlistStore) List(_ context.Context) ([]domain.WatchItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items), nil
}

// AuditStore is an append-only in-memory audit log.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty log.
func NewAuditStore() *AuditStore { return &AuditStore{} }

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    maps.Clone(detail),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns entries newest first, honouring opts.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		if opts.Event != "" && e.Event != opts.Event {
			continue
		}
		out = append(out, e)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
