package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/normalize"
)

// ResultApplierRepo implements resultapplier.Repository against PostgreSQL.
type ResultApplierRepo struct{ db *sql.DB }

// NewResultApplierRepo creates a Postgres-backed result-applier repository.
func NewResultApplierRepo(db *sql.DB) *ResultApplierRepo { return &ResultApplierRepo{db: db} }

// ApplyCompletion implements spec.md §4.6: marking the provider batch
// completed first makes redelivery of the same completion event a no-op.
func (r *ResultApplierRepo) ApplyCompletion(ctx context.Context, checkType domain.CheckType, providerBatchID string, results []domain.ProviderResult) ([]domain.UserBatch, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("apply completion for %s: begin tx: %w", providerBatchID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE provider_batches SET status = $1, updated_at = NOW()
		WHERE provider_batch_id = $2 AND check_type = $3 AND status != $1
	`, domain.ProviderCompleted, providerBatchID, checkType)
	if err != nil {
		return nil, fmt.Errorf("apply completion for %s: mark completed: %w", providerBatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("apply completion for %s: rows affected: %w", providerBatchID, err)
	}
	if n == 0 {
		return nil, nil // already completed: redelivery, nothing to do
	}

	type resolved struct {
		globalID    int64
		userBatchID int64
	}
	byStripped := make(map[string]resolved)
	rows, err := tx.QueryContext(ctx, `
		SELECT ge.email_stripped, pbe.email_global_id, pbe.user_batch_id
		FROM provider_batch_emails pbe
		JOIN global_emails ge ON ge.global_id = pbe.email_global_id
		WHERE pbe.provider_batch_id = $1 AND pbe.check_type = $2
	`, providerBatchID, checkType)
	if err != nil {
		return nil, fmt.Errorf("apply completion for %s: load associations: %w", providerBatchID, err)
	}
	for rows.Next() {
		var stripped string
		var rs resolved
		if err := rows.Scan(&stripped, &rs.globalID, &rs.userBatchID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("apply completion for %s: scan association: %w", providerBatchID, err)
		}
		byStripped[stripped] = rs
	}
	rows.Close()

	resolvedIDs := make([]int64, 0, len(results))
	affectedBatches := make(map[int64]bool)
	for _, res := range results {
		stripped := normalize.Strip(res.Email)
		rs, ok := byStripped[stripped]
		if !ok {
			continue // unresolved: not part of this provider batch
		}

		if err := r.upsertGlobalResult(ctx, tx, checkType, rs.globalID, res); err != nil {
			return nil, fmt.Errorf("apply completion for %s: %w", providerBatchID, err)
		}
		resolvedIDs = append(resolvedIDs, rs.globalID)
		affectedBatches[rs.userBatchID] = true
	}

	if len(resolvedIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE batch_email_associations bea
			SET did_complete = TRUE
			FROM provider_batch_emails pbe
			WHERE pbe.provider_batch_id = $1 AND pbe.check_type = $2
			  AND bea.batch_id = pbe.user_batch_id AND bea.email_global_id = pbe.email_global_id
			  AND bea.email_global_id = ANY($3)
		`, providerBatchID, checkType, pq.Array(resolvedIDs)); err != nil {
			return nil, fmt.Errorf("apply completion for %s: mark associations complete: %w", providerBatchID, err)
		}
	}

	var completed []domain.UserBatch
	for userBatchID := range affectedBatches {
		b, ok, err := completeIfDone(ctx, tx, userBatchID)
		if err != nil {
			return nil, fmt.Errorf("apply completion for %s: complete batch %d: %w", providerBatchID, userBatchID, err)
		}
		if ok {
			completed = append(completed, *b)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("apply completion for %s: commit: %w", providerBatchID, err)
	}
	return completed, nil
}

// upsertGlobalResult writes the check-type-specific fields for one
// resolved result (spec.md §4.6 "Numeric semantics").
func (r *ResultApplierRepo) upsertGlobalResult(ctx context.Context, tx *sql.Tx, checkType domain.CheckType, globalID int64, res domain.ProviderResult) error {
	status := res.Status
	if status == "" {
		status = string(domain.StatusUnknown)
	}
	reason := res.Reason
	if reason == "" {
		reason = "unknown"
	}
	isCatchall := checkType == domain.Deliverable && !strings.EqualFold(res.IsCatchall, "no") && res.IsCatchall != ""

	_, err := tx.ExecContext(ctx, `
		INSERT INTO global_results (email_global_id, check_type, status, reason, is_catchall, score, provider, toxicity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (email_global_id, check_type) DO UPDATE SET
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			is_catchall = EXCLUDED.is_catchall,
			score = EXCLUDED.score,
			provider = EXCLUDED.provider,
			toxicity = EXCLUDED.toxicity,
			updated_at = NOW()
	`, globalID, checkType, status, reason, isCatchall, res.Score, res.Provider, res.Toxicity)
	if err != nil {
		return fmt.Errorf("upsert global result for email %d: %w", globalID, err)
	}
	return nil
}

// completeIfDone implements spec.md §4.7: if userBatchID has no remaining
// incomplete associations, it transitions to completed and is returned.
// The UPDATE's "status != completed" condition is what guards against a
// concurrent sweeper and result applier completing the same batch twice:
// only the caller whose UPDATE changes the row gets the batch back.
func completeIfDone(ctx context.Context, tx *sql.Tx, userBatchID int64) (*domain.UserBatch, bool, error) {
	var remaining int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM batch_email_associations WHERE batch_id = $1 AND did_complete = FALSE
	`, userBatchID).Scan(&remaining); err != nil {
		return nil, false, fmt.Errorf("count remaining associations: %w", err)
	}
	if remaining > 0 {
		return nil, false, nil
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE user_batches SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3 AND status != $1
	`, domain.BatchCompleted, now, userBatchID)
	if err != nil {
		return nil, false, fmt.Errorf("transition to completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("transition to completed: rows affected: %w", err)
	}
	if n == 0 {
		return nil, false, nil // already completed by a concurrent caller
	}

	b := &domain.UserBatch{}
	var meta []byte
	err = tx.QueryRowContext(ctx, `
		SELECT id, user_id, check_type, title, status, total_emails, is_archived, s3_metadata, created_at, completed_at
		FROM user_batches WHERE id = $1
	`, userBatchID).Scan(&b.ID, &b.UserID, &b.CheckType, &b.Title, &b.Status, &b.TotalEmails,
		&b.IsArchived, &meta, &b.CreatedTS, &b.CompletedTS)
	if err != nil {
		return nil, false, fmt.Errorf("load completed batch: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.S3Metadata); err != nil {
			return nil, false, fmt.Errorf("load completed batch: unmarshal s3 metadata: %w", err)
		}
	}
	return b, true, nil
}
