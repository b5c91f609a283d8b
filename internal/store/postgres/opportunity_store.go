package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunitySelectCols = `id, pair_key, title_a, title_b, id_a, id_b,
	price_a, price_b, spread, direction, similarity, profit_per_100::text,
	detection_min_spread, status, detected_at, closed_at, duration_minutes`

// Load returns the stored ledger ordered by detection time, oldest first.
func (s *OpportunityStore) Load(ctx context.Context) ([]domain.Opportunity, error) {
	query := `SELECT ` + opportunitySelectCols + ` FROM opportunities ORDER BY detected_at, id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load opportunities rows: %w", err)
	}
	return out, nil
}

// Save replaces the stored ledger with records in a single transaction:
// every record is upserted and rows no longer in the log are deleted.
func (s *OpportunityStore) Save(ctx context.Context, records []domain.Opportunity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save opportunities: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, len(records))
	for i, o := range records {
		ids[i] = o.ID
	}
	if _, err := tx.Exec(ctx, `DELETE FROM opportunities WHERE NOT (id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("postgres: prune opportunities: %w", err)
	}

	if len(records) > 0 {
		const query = `
			INSERT INTO opportunities (
				id, pair_key, title_a, title_b, id_a, id_b,
				price_a, price_b, spread, direction, similarity, profit_per_100,
				detection_min_spread, status, detected_at, closed_at, duration_minutes
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				$7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17
			)
			ON CONFLICT (id) DO UPDATE SET
				status           = EXCLUDED.status,
				closed_at        = EXCLUDED.closed_at,
				duration_minutes = EXCLUDED.duration_minutes`

		batch := &pgx.Batch{}
		for _, o := range records {
			batch.Queue(query,
				o.ID, o.Key, o.TitleA, o.TitleB, o.IDA, o.IDB,
				o.PriceA, o.PriceB, o.Spread, string(o.Direction), o.Similarity, o.ProfitPer100.StringFixed(2),
				o.DetectionMinSpread, string(o.Status), o.DetectedAt, o.ClosedAt, o.DurationMinutes,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range records {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: upsert opportunity batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close opportunity batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit save opportunities: %w", err)
	}
	return nil
}

// scanOpportunity scans a single row into a domain.Opportunity.
func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		o                 domain.Opportunity
		direction, status string
		profit            string
	)
	err := row.Scan(
		&o.ID, &o.Key, &o.TitleA, &o.TitleB, &o.IDA, &o.IDB,
		&o.PriceA, &o.PriceB, &o.Spread, &direction, &o.Similarity, &profit,
		&o.DetectionMinSpread, &status, &o.DetectedAt, &o.ClosedAt, &o.DurationMinutes,
	)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: scan opportunity: %w", err)
	}
	o.Direction = domain.Direction(direction)
	o.Status = domain.OpportunityStatus(status)
	o.ProfitPer100, err = decimal.NewFromString(profit)
	if err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: parse profit_per_100 %q: %w", profit, err)
	}
	o.DetectedAt = o.DetectedAt.UTC()
	if o.ClosedAt != nil {
		t := o.ClosedAt.UTC()
		o.ClosedAt = &t
	}
	return o, nil
}
