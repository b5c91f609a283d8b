package domain

import (
	"fmt"
	"time"
)

// ScanConfig holds the live tunables of the scan cycle.
type ScanConfig struct {
	MinSpread           int           `json:"min_spread"`
	ViewMinSpread       int           `json:"view_min_spread"`
	AutoAlert           bool          `json:"auto_alert"`
	CheckInterval       time.Duration `json:"check_interval"`
	SimilarityThreshold float64       `json:"similarity_threshold"`
}

// DefaultScanConfig returns the documented defaults.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MinSpread:           5,
		ViewMinSpread:       2,
		AutoAlert:           true,
		CheckInterval:       5 * time.Minute,
		SimilarityThreshold: 0.4,
	}
}

// Validate rejects configurations the scan cycle cannot run with.
func (c ScanConfig) Validate() error {
	switch {
	case c.MinSpread < 0 || c.MinSpread > 100:
		return fmt.Errorf("%w: min_spread must be 0-100, got %d", ErrInvalidConfig, c.MinSpread)
	case c.ViewMinSpread < 0 || c.ViewMinSpread > 100:
		return fmt.Errorf("%w: view_min_spread must be 0-100, got %d", ErrInvalidConfig, c.ViewMinSpread)
	case c.CheckInterval < time.Second:
		return fmt.Errorf("%w: check_interval must be >= 1s, got %s", ErrInvalidConfig, c.CheckInterval)
	case c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1:
		return fmt.Errorf("%w: similarity_threshold must be in (0,1], got %g", ErrInvalidConfig, c.SimilarityThreshold)
	}
	return nil
}

// MarketStats aggregates a cycle's instrument set.
type MarketStats struct {
	TotalMarkets   int    `json:"total_markets"`
	TotalVolume24h string `json:"total_volume_24h"`
	AvgPrice       int    `json:"avg_price"`
}

// WatchItem is an instrument the user pinned to the watchlist.
type WatchItem struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Source  string    `json:"source"`
	Link    string    `json:"link"`
	AddedAt time.Time `json:"added_at"`
}

// WatchEntry is a watchlist item enriched with the latest quote, if any.
type WatchEntry struct {
	WatchItem
	YesPrice *int `json:"yes_price"`
	Delta    *int `json:"delta"`
}
