package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/userbatch"
)

// UserBatchRepo implements userbatch.Repository against PostgreSQL.
type UserBatchRepo struct{ db *sql.DB }

// NewUserBatchRepo creates a Postgres-backed user-batch repository.
func NewUserBatchRepo(db *sql.DB) *UserBatchRepo { return &UserBatchRepo{db: db} }

func (r *UserBatchRepo) ResolveGlobalIDs(ctx context.Context, checkType domain.CheckType, stripped []string) (map[string]int64, map[string]bool, error) {
	if len(stripped) == 0 {
		return map[string]int64{}, map[string]bool{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve global ids: begin tx: %w", err)
	}
	defer tx.Rollback()

	ids := make(map[string]int64, len(stripped))
	idList := make([]int64, 0, len(stripped))
	for _, st := range stripped {
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO global_emails (email_stripped) VALUES ($1)
			ON CONFLICT (email_stripped) DO UPDATE SET email_stripped = EXCLUDED.email_stripped
			RETURNING global_id
		`, st).Scan(&id)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve global ids: upsert %q: %w", st, err)
		}
		ids[st] = id
		idList = append(idList, id)
	}

	cachedByID := make(map[int64]bool, len(idList))
	rows, err := tx.QueryContext(ctx, `
		SELECT email_global_id FROM global_results
		WHERE check_type = $1 AND email_global_id = ANY($2)
	`, checkType, pq.Array(idList))
	if err != nil {
		return nil, nil, fmt.Errorf("resolve global ids: check cache: %w", err)
	}
	for rows.Next() {
		var gid int64
		if err := rows.Scan(&gid); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("resolve global ids: scan cache hit: %w", err)
		}
		cachedByID[gid] = true
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("resolve global ids: commit: %w", err)
	}

	cached := make(map[string]bool, len(stripped))
	for st, id := range ids {
		cached[st] = cachedByID[id]
	}
	return ids, cached, nil
}

func (r *UserBatchRepo) CreateWithAssociations(ctx context.Context, b *domain.UserBatch, globalIDs map[string]int64, rows []userbatch.NewAssociation) (int64, error) {
	meta, err := json.Marshal(b.S3Metadata)
	if err != nil {
		return 0, fmt.Errorf("create batch: marshal s3 metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	var batchID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_batches (user_id, check_type, title, status, total_emails, s3_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, b.UserID, b.CheckType, b.Title, b.Status, b.TotalEmails, meta).Scan(&batchID)
	if err != nil {
		return 0, fmt.Errorf("create batch: insert: %w", err)
	}

	for _, row := range rows {
		globalID, ok := globalIDs[row.EmailStripped]
		if !ok {
			return 0, fmt.Errorf("create batch: no global id resolved for %q", row.EmailStripped)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_email_associations (batch_id, email_global_id, email_nominal, used_cached, did_complete)
			VALUES ($1, $2, $3, $4, $5)
		`, batchID, globalID, row.EmailNominal, row.UsedCached, row.DidComplete)
		if err != nil {
			return 0, fmt.Errorf("create batch: insert association for %q: %w", row.EmailStripped, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create batch: commit: %w", err)
	}
	return batchID, nil
}

func (r *UserBatchRepo) Get(ctx context.Context, id int64) (*domain.UserBatch, error) {
	b := &domain.UserBatch{}
	var meta []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, check_type, title, status, total_emails, is_archived,
		       s3_metadata, created_at, completed_at
		FROM user_batches WHERE id = $1
	`, id).Scan(&b.ID, &b.UserID, &b.CheckType, &b.Title, &b.Status, &b.TotalEmails,
		&b.IsArchived, &meta, &b.CreatedTS, &b.CompletedTS)
	if err == sql.ErrNoRows {
		return nil, userbatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %d: %w", id, err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &b.S3Metadata); err != nil {
			return nil, fmt.Errorf("get batch %d: unmarshal s3 metadata: %w", id, err)
		}
	}
	return b, nil
}

func (r *UserBatchRepo) ListForUser(ctx context.Context, userID string, checkType domain.CheckType) ([]domain.UserBatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, check_type, title, status, total_emails, is_archived,
		       s3_metadata, created_at, completed_at
		FROM user_batches
		WHERE user_id = $1 AND check_type = $2
		ORDER BY created_at DESC
	`, userID, checkType)
	if err != nil {
		return nil, fmt.Errorf("list batches for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.UserBatch
	for rows.Next() {
		var b domain.UserBatch
		var meta []byte
		if err := rows.Scan(&b.ID, &b.UserID, &b.CheckType, &b.Title, &b.Status, &b.TotalEmails,
			&b.IsArchived, &meta, &b.CreatedTS, &b.CompletedTS); err != nil {
			return nil, fmt.Errorf("list batches for %s: scan: %w", userID, err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &b.S3Metadata); err != nil {
				return nil, fmt.Errorf("list batches for %s: unmarshal s3 metadata: %w", userID, err)
			}
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *UserBatchRepo) TransitionStatus(ctx context.Context, id int64, from, to domain.UserBatchStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE user_batches SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("transition batch %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition batch %d: rows affected: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM user_batches WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("transition batch %d: existence check: %w", id, err)
	}
	if !exists {
		return userbatch.ErrNotFound
	}
	return userbatch.ErrInvalidTransition
}

func (r *UserBatchRepo) CountAssociations(ctx context.Context, id int64) (int, int, error) {
	var total, completed int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE did_complete)
		FROM batch_email_associations WHERE batch_id = $1
	`, id).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("count associations for %d: %w", id, err)
	}
	return total, completed, nil
}

func (r *UserBatchRepo) GetEnrichmentProgress(ctx context.Context, id int64, checkType domain.CheckType) (*domain.EnrichmentProgress, error) {
	p := &domain.EnrichmentProgress{}
	err := r.db.QueryRowContext(ctx, `
		SELECT batch_id, check_type, status, rows_processed, total_rows,
		       started_at, completed_at, COALESCE(error_message, '')
		FROM enrichment_progress WHERE batch_id = $1 AND check_type = $2
	`, id, checkType).Scan(&p.BatchID, &p.CheckType, &p.Status, &p.RowsProcessed,
		&p.TotalRows, &p.StartedAt, &p.CompletedAt, &p.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, nil // enrichment hasn't started for this batch yet
	}
	if err != nil {
		return nil, fmt.Errorf("get enrichment progress for %d: %w", id, err)
	}
	return p, nil
}
