package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
// It is used when Redis is disabled.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given connection pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Load returns every stored series in insertion order.
func (s *PriceHistoryStore) Load(ctx context.Context) (map[string][]domain.PriceSample, error) {
	const query = `SELECT history_key, sampled_at, price FROM price_samples ORDER BY history_key, seq`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load price history: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.PriceSample)
	for rows.Next() {
		var key string
		var p domain.PriceSample
		if err := rows.Scan(&key, &p.T, &p.P); err != nil {
			return nil, fmt.Errorf("postgres: scan price sample: %w", err)
		}
		p.T = p.T.UTC()
		out[key] = append(out[key], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load price history rows: %w", err)
	}
	return out, nil
}

// Append inserts one sample per key and trims each touched series to its most
// recent cap samples.
func (s *PriceHistoryStore) Append(ctx context.Context, samples map[string]domain.PriceSample, cap int) error {
	if len(samples) == 0 {
		return nil
	}

	const insert = `INSERT INTO price_samples (history_key, sampled_at, price) VALUES ($1, $2, $3)`
	const trim = `
		DELETE FROM price_samples
		WHERE history_key = $1 AND seq NOT IN (
			SELECT seq FROM price_samples WHERE history_key = $1 ORDER BY seq DESC LIMIT $2
		)`

	batch := &pgx.Batch{}
	for key, p := range samples {
		batch.Queue(insert, key, p.T, p.P)
		if cap > 0 {
			batch.Queue(trim, key, cap)
		}
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append price history item %d: %w", i, err)
		}
	}
	return nil
}
