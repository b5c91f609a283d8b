package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// AuditStore implements domain.AuditStore on the audit_log table. Scan
// failures, watchlist edits and archive uploads are recorded here.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends an entry. pgx encodes detail as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log (event, detail) VALUES ($1, $2)`, event, detail,
	); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// listAuditQuery treats a NULL bound as "no filter" so one statement serves
// every combination of options.
const listAuditQuery = `
	SELECT id, event, detail, created_at
	FROM audit_log
	WHERE (@since::timestamptz IS NULL OR created_at >= @since)
	  AND (@until::timestamptz IS NULL OR created_at <= @until)
	  AND (@event::text = '' OR event = @event)
	ORDER BY created_at DESC, id DESC
	LIMIT @limit OFFSET @offset`

// List returns entries newest first, filtered by opts.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	rows, err := s.pool.Query(ctx, listAuditQuery, pgx.NamedArgs{
		"since":  opts.Since,
		"until":  opts.Until,
		"event":  opts.Event,
		"limit":  limit,
		"offset": max(opts.Offset, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AuditEntry, error) {
		var e domain.AuditEntry
		if err := row.Scan(&e.ID, &e.Event, &e.Detail, &e.CreatedAt); err != nil {
			return e, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit entries: %w", err)
	}
	return entries, nil
}
