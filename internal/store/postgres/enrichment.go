package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/veribatch/internal/domain"
)

// EnrichmentRepo implements enrichment.Repository against PostgreSQL.
type EnrichmentRepo struct{ db *sql.DB }

// NewEnrichmentRepo creates a Postgres-backed enrichment repository.
func NewEnrichmentRepo(db *sql.DB) *EnrichmentRepo { return &EnrichmentRepo{db: db} }

func (r *EnrichmentRepo) GetBatch(ctx context.Context, batchID int64) (*domain.UserBatch, error) {
	b := &domain.UserBatch{}
	var meta []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, check_type, title, status, total_emails, is_archived,
		       s3_metadata, created_at, completed_at
		FROM user_batches WHERE id = $1
	`, batchID).Scan(&b.ID, &b.UserID, &b.CheckType, &b.Title, &b.Status, &b.TotalEmails,
		&b.IsArchived, &meta, &b.CreatedTS, &b.CompletedTS)
	if err != nil {
		return nil, fmt.Errorf("get batch %d: %w", batchID, err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.S3Metadata); err != nil {
			return nil, fmt.Errorf("get batch %d: unmarshal s3 metadata: %w", batchID, err)
		}
	}
	return b, nil
}

// LoadResults loads every cached GlobalResult for a batch's associated
// addresses, keyed by stripped email, for the join step of spec.md §4.8.
func (r *EnrichmentRepo) LoadResults(ctx context.Context, batchID int64, checkType domain.CheckType) (map[string]*domain.GlobalResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ge.email_stripped, gr.email_global_id, gr.check_type, gr.status, gr.reason,
		       gr.is_catchall, gr.score, gr.provider, gr.toxicity, gr.updated_at
		FROM batch_email_associations bea
		JOIN global_emails ge ON ge.global_id = bea.email_global_id
		JOIN global_results gr ON gr.email_global_id = bea.email_global_id AND gr.check_type = $2
		WHERE bea.batch_id = $1
	`, batchID, checkType)
	if err != nil {
		return nil, fmt.Errorf("load results for batch %d: %w", batchID, err)
	}
	defer rows.Close()

	out := make(map[string]*domain.GlobalResult)
	for rows.Next() {
		var stripped string
		gr := &domain.GlobalResult{}
		if err := rows.Scan(&stripped, &gr.EmailGlobalID, &gr.CheckType, &gr.Status, &gr.Reason,
			&gr.IsCatchall, &gr.Score, &gr.Provider, &gr.Toxicity, &gr.UpdatedTS); err != nil {
			return nil, fmt.Errorf("load results for batch %d: scan: %w", batchID, err)
		}
		out[stripped] = gr
	}
	return out, nil
}

func (r *EnrichmentRepo) MarkProcessing(ctx context.Context, batchID int64, checkType domain.CheckType) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrichment_progress (batch_id, check_type, status, rows_processed, started_at)
		VALUES ($1, $2, $3, 0, NOW())
		ON CONFLICT (batch_id, check_type) DO UPDATE SET
			status = EXCLUDED.status, rows_processed = 0, started_at = NOW(),
			completed_at = NULL, error_message = NULL
	`, batchID, checkType, domain.EnrichmentProcessing)
	if err != nil {
		return fmt.Errorf("mark batch %d processing: %w", batchID, err)
	}
	return nil
}

func (r *EnrichmentRepo) UpdateProgress(ctx context.Context, batchID int64, checkType domain.CheckType, rowsProcessed int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE enrichment_progress SET rows_processed = $1
		WHERE batch_id = $2 AND check_type = $3
	`, rowsProcessed, batchID, checkType)
	if err != nil {
		return fmt.Errorf("update progress for batch %d: %w", batchID, err)
	}
	return nil
}

// MarkCompleted records the generated export artifacts both on the
// enrichment_progress row and merged into the batch's s3_metadata.exports
// map, so download endpoints can read artifact locations off UserBatch
// alone.
func (r *EnrichmentRepo) MarkCompleted(ctx context.Context, batchID int64, checkType domain.CheckType, exports map[domain.ExportKind]domain.ExportArtifact) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark batch %d completed: begin tx: %w", batchID, err)
	}
	defer tx.Rollback()

	var rowsProcessed int64
	err = tx.QueryRowContext(ctx, `
		SELECT rows_processed FROM enrichment_progress WHERE batch_id = $1 AND check_type = $2
	`, batchID, checkType).Scan(&rowsProcessed)
	if err != nil {
		return fmt.Errorf("mark batch %d completed: read rows processed: %w", batchID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE enrichment_progress SET status = $1, completed_at = NOW()
		WHERE batch_id = $2 AND check_type = $3
	`, domain.EnrichmentCompleted, batchID, checkType); err != nil {
		return fmt.Errorf("mark batch %d completed: update progress: %w", batchID, err)
	}

	var meta []byte
	if err := tx.QueryRowContext(ctx, `
		SELECT s3_metadata FROM user_batches WHERE id = $1 FOR UPDATE
	`, batchID).Scan(&meta); err != nil {
		return fmt.Errorf("mark batch %d completed: read s3 metadata: %w", batchID, err)
	}

	var s3meta domain.S3Metadata
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &s3meta); err != nil {
			return fmt.Errorf("mark batch %d completed: unmarshal s3 metadata: %w", batchID, err)
		}
	}
	if s3meta.Exports == nil {
		s3meta.Exports = make(map[string]domain.ExportArtifact, len(exports))
	}
	for kind, artifact := range exports {
		s3meta.Exports[string(kind)] = artifact
	}

	newMeta, err := json.Marshal(s3meta)
	if err != nil {
		return fmt.Errorf("mark batch %d completed: marshal s3 metadata: %w", batchID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_batches SET s3_metadata = $1, updated_at = NOW() WHERE id = $2
	`, newMeta, batchID); err != nil {
		return fmt.Errorf("mark batch %d completed: update s3 metadata: %w", batchID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark batch %d completed: commit: %w", batchID, err)
	}
	return nil
}

func (r *EnrichmentRepo) MarkFailed(ctx context.Context, batchID int64, checkType domain.CheckType, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE enrichment_progress SET status = $1, error_message = $2, completed_at = NOW()
		WHERE batch_id = $3 AND check_type = $4
	`, domain.EnrichmentFailed, errMsg, batchID, checkType)
	if err != nil {
		return fmt.Errorf("mark batch %d failed: %w", batchID, err)
	}
	return nil
}
