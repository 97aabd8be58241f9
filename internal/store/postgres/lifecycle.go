package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/veribatch/internal/domain"
)

// MaxAssociationRetries caps how many times a stranded association may be
// freed back into the packer pool after its provider batch fails
// terminally (spec.md §9 open question #1), grounded on the teacher's
// MaxRetryCount convention (internal/worker/queue_recovery.go).
const MaxAssociationRetries = 5

// LifecycleRepo implements lifecycle.Repository against PostgreSQL.
type LifecycleRepo struct{ db *sql.DB }

// NewLifecycleRepo creates a Postgres-backed provider-batch-lifecycle repository.
func NewLifecycleRepo(db *sql.DB) *LifecycleRepo { return &LifecycleRepo{db: db} }

func (r *LifecycleRepo) ListInFlight(ctx context.Context, checkType domain.CheckType) ([]domain.ProviderBatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider_batch_id, check_type, primary_user_batch_id, status,
		       email_count, processed, created_at, updated_at
		FROM provider_batches
		WHERE check_type = $1 AND status IN ($2, $3)
		ORDER BY created_at ASC
	`, checkType, domain.ProviderPending, domain.ProviderProcessing)
	if err != nil {
		return nil, fmt.Errorf("list in-flight provider batches: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderBatch
	for rows.Next() {
		var b domain.ProviderBatch
		if err := rows.Scan(&b.ProviderBatchID, &b.CheckType, &b.PrimaryUserBatchID, &b.Status,
			&b.EmailCount, &b.Processed, &b.CreatedTS, &b.UpdatedTS); err != nil {
			return nil, fmt.Errorf("list in-flight provider batches: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *LifecycleRepo) UpdateProgress(ctx context.Context, providerBatchID string, checkType domain.CheckType, processed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE provider_batches SET status = $1, processed = $2, updated_at = NOW()
		WHERE provider_batch_id = $3 AND check_type = $4
	`, domain.ProviderProcessing, processed, providerBatchID, checkType)
	if err != nil {
		return fmt.Errorf("update progress for %s: %w", providerBatchID, err)
	}
	return nil
}

// MarkFailed transitions a provider batch to failed and frees its
// stranded associations back to the packer pool, up to
// MaxAssociationRetries per association (spec.md §9 open question #1).
func (r *LifecycleRepo) MarkFailed(ctx context.Context, providerBatchID string, checkType domain.CheckType) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark batch %s failed: begin tx: %w", providerBatchID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE provider_batches SET status = $1, updated_at = NOW()
		WHERE provider_batch_id = $2 AND check_type = $3
	`, domain.ProviderFailed, providerBatchID, checkType); err != nil {
		return fmt.Errorf("mark batch %s failed: update status: %w", providerBatchID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE batch_email_associations bea
		SET retry_count = retry_count + 1
		FROM provider_batch_emails pbe
		WHERE pbe.provider_batch_id = $1 AND pbe.check_type = $2
		  AND bea.batch_id = pbe.user_batch_id AND bea.email_global_id = pbe.email_global_id
	`, providerBatchID, checkType); err != nil {
		return fmt.Errorf("mark batch %s failed: increment retry counts: %w", providerBatchID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM provider_batch_emails pbe
		USING batch_email_associations bea
		WHERE pbe.provider_batch_id = $1 AND pbe.check_type = $2
		  AND bea.batch_id = pbe.user_batch_id AND bea.email_global_id = pbe.email_global_id
		  AND bea.retry_count < $3
	`, providerBatchID, checkType, MaxAssociationRetries); err != nil {
		return fmt.Errorf("mark batch %s failed: free stranded associations: %w", providerBatchID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark batch %s failed: commit: %w", providerBatchID, err)
	}
	return nil
}

func (r *LifecycleRepo) IncrementAttempt(ctx context.Context, providerBatchID string, checkType domain.CheckType) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE provider_batches SET attempts = attempts + 1, updated_at = NOW()
		WHERE provider_batch_id = $1 AND check_type = $2
		RETURNING attempts
	`, providerBatchID, checkType).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment attempt for %s: %w", providerBatchID, err)
	}
	return attempts, nil
}
