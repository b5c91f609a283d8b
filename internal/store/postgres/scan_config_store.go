package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// ScanConfigStore implements domain.ScanConfigStore using a single-row
// PostgreSQL table.
type ScanConfigStore struct {
	pool *pgxpool.Pool
}

// NewScanConfigStore creates a new ScanConfigStore backed by the given connection pool.
func NewScanConfigStore(pool *pgxpool.Pool) *ScanConfigStore {
	return &ScanConfigStore{pool: pool}
}

// Get returns the saved configuration or domain.ErrNotFound.
func (s *ScanConfigStore) Get(ctx context.Context) (domain.ScanConfig, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT config_json FROM scan_config WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScanConfig{}, domain.ErrNotFound
		}
		return domain.ScanConfig{}, fmt.Errorf("postgres: get scan config: %w", err)
	}

	var cfg domain.ScanConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.ScanConfig{}, fmt.Errorf("postgres: unmarshal scan config: %w", err)
	}
	return cfg, nil
}

// Save upserts the configuration.
func (s *ScanConfigStore) Save(ctx context.Context, cfg domain.ScanConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: marshal scan config: %w", err)
	}

	const query = `
		INSERT INTO scan_config (id, config_json, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			config_json = EXCLUDED.config_json,
			updated_at  = NOW()`

	if _, err := s.pool.Exec(ctx, query, raw); err != nil {
		return fmt.Errorf("postgres: save scan config: %w", err)
	}
	return nil
}
