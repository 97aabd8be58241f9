package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/packer"
)

// PackerRepo implements packer.Repository against PostgreSQL.
type PackerRepo struct{ db *sql.DB }

// NewPackerRepo creates a Postgres-backed packer repository.
func NewPackerRepo(db *sql.DB) *PackerRepo { return &PackerRepo{db: db} }

func (r *PackerRepo) CountInFlight(ctx context.Context, checkType domain.CheckType) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM provider_batches
		WHERE check_type = $1 AND status IN ($2, $3)
	`, checkType, domain.ProviderPending, domain.ProviderProcessing).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in-flight provider batches: %w", err)
	}
	return n, nil
}

// SelectPool implements spec.md §4.4's eligibility and ordering rules:
// queued/processing, non-archived user batches, associations not yet
// cached, not yet completed, and not currently assigned to a provider
// batch for this check type (rows freed when a failed provider batch's
// provider_batch_emails are deleted become eligible again).
func (r *PackerRepo) SelectPool(ctx context.Context, checkType domain.CheckType, limit int) ([]packer.PoolRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bea.batch_id, bea.email_global_id, ge.email_stripped, ub.created_at
		FROM batch_email_associations bea
		JOIN user_batches ub ON ub.id = bea.batch_id
		JOIN global_emails ge ON ge.global_id = bea.email_global_id
		WHERE ub.check_type = $1
		  AND ub.status IN ($2, $3)
		  AND ub.is_archived = FALSE
		  AND bea.used_cached = FALSE
		  AND bea.did_complete = FALSE
		  AND NOT EXISTS (
		    SELECT 1 FROM provider_batch_emails pbe
		    WHERE pbe.check_type = $1 AND pbe.email_global_id = bea.email_global_id
		  )
		ORDER BY ub.created_at ASC, ub.id ASC, bea.email_global_id ASC
		LIMIT $4
	`, checkType, domain.BatchQueued, domain.BatchProcessing, limit)
	if err != nil {
		return nil, fmt.Errorf("select pool: %w", err)
	}
	defer rows.Close()

	var out []packer.PoolRow
	for rows.Next() {
		var p packer.PoolRow
		if err := rows.Scan(&p.UserBatchID, &p.EmailGlobalID, &p.EmailStripped, &p.UserBatchCreated); err != nil {
			return nil, fmt.Errorf("select pool: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *PackerRepo) SubmitPool(ctx context.Context, checkType domain.CheckType, providerBatchID string, pool []packer.PoolRow) error {
	if len(pool) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("submit pool: begin tx: %w", err)
	}
	defer tx.Rollback()

	seenBatches := make(map[int64]bool, len(pool))
	primaryUserBatchID := pool[0].UserBatchID
	for _, row := range pool {
		if seenBatches[row.UserBatchID] {
			continue
		}
		seenBatches[row.UserBatchID] = true
		if _, err := tx.ExecContext(ctx, `
			UPDATE user_batches SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status IN ($3, $4)
		`, domain.BatchProcessing, row.UserBatchID, domain.BatchQueued, domain.BatchProcessing); err != nil {
			return fmt.Errorf("submit pool: transition batch %d: %w", row.UserBatchID, err)
		}
	}

	for _, row := range pool {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO provider_batch_emails (provider_batch_id, check_type, email_global_id, user_batch_id)
			VALUES ($1, $2, $3, $4)
		`, providerBatchID, checkType, row.EmailGlobalID, row.UserBatchID); err != nil {
			return fmt.Errorf("submit pool: insert provider_batch_email: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO provider_batches (provider_batch_id, check_type, primary_user_batch_id, status, email_count, processed)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, providerBatchID, checkType, primaryUserBatchID, domain.ProviderPending, len(pool)); err != nil {
		return fmt.Errorf("submit pool: insert provider_batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("submit pool: commit: %w", err)
	}
	return nil
}
