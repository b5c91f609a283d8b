package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	// Event restricts audit listings to one event name.
	Event  string
}

// OpportunityStore persists the bounded opportunity ledger. Save replaces the
// stored log with the given records.
type OpportunityStore interface {
	Load(ctx context.Context) ([]Opportunity, error)
	Save(ctx context.Context, records []Opportunity) error
}

// PriceHistoryStore persists per-instrument price samples. Append pushes one
// sample per key and trims every touched series to its most recent cap entries.
type PriceHistoryStore interface {
	Load(ctx context.Context) (map[string][]PriceSample, error)
	Append(ctx context.Context, samples map[string]PriceSample, cap int) error
}

// ScanConfigStore persists the live scan configuration. Get returns
// ErrNotFound when nothing has been saved yet.
type ScanConfigStore interface {
	Get(ctx context.Context) (ScanConfig, error)
	Save(ctx context.Context, cfg ScanConfig) error
}

// AlertStore persists the alert list.
type AlertStore interface {
	Create(ctx context.Context, a Alert) error
	Update(ctx context.Context, a Alert) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Alert, error)
}

// WatchlistStore persists watchlist items. Add reports false when an item with
// the same id already exists.
type WatchlistStore interface {
	Add(ctx context.Context, item WatchItem) (bool, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]WatchItem, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
