package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/veribatch/internal/domain"
)

// SweeperRepo implements sweeper.Repository against PostgreSQL.
type SweeperRepo struct{ db *sql.DB }

// NewSweeperRepo creates a Postgres-backed stuck-batch sweeper repository.
func NewSweeperRepo(db *sql.DB) *SweeperRepo { return &SweeperRepo{db: db} }

// SweepStuckBatches finds processing, non-archived user batches with no
// remaining incomplete associations and completes them, reusing the same
// completeIfDone guard the result applier uses so a batch already closed
// by a racing applier call is never completed twice.
func (r *SweeperRepo) SweepStuckBatches(ctx context.Context, checkType domain.CheckType) ([]domain.UserBatch, error) {
	candidates, err := r.findStuck(ctx, checkType)
	if err != nil {
		return nil, fmt.Errorf("sweep stuck batches: %w", err)
	}

	var completed []domain.UserBatch
	for _, id := range candidates {
		b, ok, err := r.completeOne(ctx, id)
		if err != nil {
			return completed, fmt.Errorf("sweep stuck batches: complete batch %d: %w", id, err)
		}
		if ok {
			completed = append(completed, *b)
		}
	}
	return completed, nil
}

func (r *SweeperRepo) findStuck(ctx context.Context, checkType domain.CheckType) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ub.id FROM user_batches ub
		WHERE ub.check_type = $1 AND ub.status = $2 AND ub.is_archived = FALSE
		  AND EXISTS (SELECT 1 FROM batch_email_associations bea WHERE bea.batch_id = ub.id)
		  AND NOT EXISTS (
		    SELECT 1 FROM batch_email_associations bea
		    WHERE bea.batch_id = ub.id AND bea.did_complete = FALSE
		  )
	`, checkType, domain.BatchProcessing)
	if err != nil {
		return nil, fmt.Errorf("find stuck candidates: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("find stuck candidates: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *SweeperRepo) completeOne(ctx context.Context, userBatchID int64) (*domain.UserBatch, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	b, ok, err := completeIfDone(ctx, tx, userBatchID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return b, true, nil
}
