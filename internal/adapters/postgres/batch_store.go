package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/etterlatte-settlement/internal/core/domain"
	"github.com/DanielPopoola/etterlatte-settlement/internal/core/ports"
	"github.com/jackc/pgx/v5"
)

// BatchStore appends reconciliation runs. The table rejects updates and deletes.
type BatchStore struct {
	db *DB
	q  Executor
}

func NewBatchStore(db *DB) *BatchStore {
	return &BatchStore{db: db, q: db.Pool}
}

var _ ports.BatchStore = (*BatchStore)(nil)

// InsertBatch records b. Inserts of one kind are serialised, and a grensesnitt
// batch must start where the previous one ended or later, so a run racing a
// failed-over leader cannot report the same orders twice.
func (s *BatchStore) InsertBatch(ctx context.Context, b *domain.ReconciliationBatch) error {
	return s.db.WithTx(ctx, writeTx, func(tx Executor) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(b.Kind)); err != nil {
			return fmt.Errorf("lock reconciliation batches: %w", err)
		}

		if b.Kind == domain.BatchKindGrensesnitt {
			last, err := (&BatchStore{db: s.db, q: tx}).LatestBatch(ctx, b.Kind)
			if err != nil {
				return err
			}
			if last != nil && b.Period.From.Before(last.Period.To) {
				return fmt.Errorf("%w: starts %s, previous batch %s ended %s",
					domain.ErrBatchOverlap, b.Period.From.Format(time.RFC3339Nano), last.ID, last.Period.To.Format(time.RFC3339Nano))
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO reconciliation_batch (id, kind, created_at, period_from, period_to, order_count, report)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID,
			b.Kind,
			b.CreatedAt,
			b.Period.From,
			b.Period.To,
			b.OrderCount,
			b.Report,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reconciliation batch: %w", err)
		}
		return nil
	})
}

// LatestBatch returns the newest batch of kind, or nil if none has run yet.
func (s *BatchStore) LatestBatch(ctx context.Context, kind domain.BatchKind) (*domain.ReconciliationBatch, error) {
	var b domain.ReconciliationBatch
	err := s.q.QueryRow(ctx, `
		SELECT id, kind, created_at, period_from, period_to, order_count, report
		FROM reconciliation_batch
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT 1`, kind,
	).Scan(
		&b.ID,
		&b.Kind,
		&b.CreatedAt,
		&b.Period.From,
		&b.Period.To,
		&b.OrderCount,
		&b.Report,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan reconciliation batch: %w", err)
	}
	return &b, nil
}
