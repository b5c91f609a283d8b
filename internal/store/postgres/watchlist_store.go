package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *pgxpool.Pool
}

// NewWatchlistStore creates a new WatchlistStore backed by the given connection pool.
func NewWatchlistStore(pool *pgxpool.Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// Add inserts item unless an item with the same id exists.
func (s *WatchlistStore) Add(ctx context.Context, item domain.WatchItem) (bool, error) {
	const query = `
		INSERT INTO watchlist (id, title, source, link, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, item.ID, item.Title, item.Source, item.Link, item.AddedAt)
	if err != nil {
		return false, fmt.Errorf("postgres: add watch item %s: %w", item.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Remove deletes an item by id. Removing an absent id is not an error.
func (s *WatchlistStore) Remove(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM watchlist WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: remove watch item %s: %w", id, err)
	}
	return nil
}

// List returns the watchlist in the order items were added.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.WatchItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, source, link, added_at FROM watchlist ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watchlist: %w", err)
	}
	defer rows.Close()

	var out []domain.WatchItem
	for rows.Next() {
		var it domain.WatchItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Source, &it.Link, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan watch item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list watchlist rows: %w", err)
	}
	return out, nil
}
