package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// AlertStore implements domain.AlertStore using PostgreSQL.
type AlertStore struct {
	pool *pgxpool.Pool
}

// NewAlertStore creates a new AlertStore backed by the given connection pool.
func NewAlertStore(pool *pgxpool.Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

const alertSelectCols = `id, market_id, market_name, ref_id, condition, target_price,
	triggered, triggered_at, created_at, arb_data`

// Create inserts a new alert. A duplicate id yields domain.ErrAlreadyExists.
func (s *AlertStore) Create(ctx context.Context, a domain.Alert) error {
	arbJSON, err := marshalArb(a.Arb)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO alerts (
			id, market_id, market_name, ref_id, condition, target_price,
			triggered, triggered_at, created_at, arb_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, query,
		a.ID, a.MarketID, a.MarketName, a.RefID, a.Condition, a.TargetPrice,
		a.Triggered, a.TriggeredAt, a.CreatedAt, arbJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("postgres: create alert %s: %w", a.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: create alert %s: %w", a.ID, err)
	}
	return nil
}

// Update overwrites the trigger state of an existing alert.
func (s *AlertStore) Update(ctx context.Context, a domain.Alert) error {
	const query = `UPDATE alerts SET triggered = $2, triggered_at = $3 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, a.ID, a.Triggered, a.TriggeredAt)
	if err != nil {
		return fmt.Errorf("postgres: update alert %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update alert %s: %w", a.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an alert by id.
func (s *AlertStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete alert %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// List returns all alerts, newest first.
func (s *AlertStore) List(ctx context.Context) ([]domain.Alert, error) {
	query := `SELECT ` + alertSelectCols + ` FROM alerts ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list alerts rows: %w", err)
	}
	return out, nil
}

func scanAlert(row pgx.Row) (domain.Alert, error) {
	var a domain.Alert
	var arbJSON []byte
	err := row.Scan(
		&a.ID, &a.MarketID, &a.MarketName, &a.RefID, &a.Condition, &a.TargetPrice,
		&a.Triggered, &a.TriggeredAt, &a.CreatedAt, &arbJSON,
	)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("postgres: scan alert: %w", err)
	}
	if arbJSON != nil {
		a.Arb = &domain.ArbData{}
		if err := json.Unmarshal(arbJSON, a.Arb); err != nil {
			return domain.Alert{}, fmt.Errorf("postgres: unmarshal arb data %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func marshalArb(arb *domain.ArbData) ([]byte, error) {
	if arb == nil {
		return nil, nil
	}
	b, err := json.Marshal(arb)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal arb data: %w", err)
	}
	return b, nil
}
