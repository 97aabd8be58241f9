package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/veribatch/internal/domain"
)

// RateGovernorRepo implements rategovernor.Repository against PostgreSQL.
type RateGovernorRepo struct{ db *sql.DB }

// NewRateGovernorRepo creates a Postgres-backed rate-counter repository.
func NewRateGovernorRepo(db *sql.DB) *RateGovernorRepo { return &RateGovernorRepo{db: db} }

func (r *RateGovernorRepo) RecordGrant(ctx context.Context, ct domain.CheckType, kind domain.RequestKind, n int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rate_counters (check_type, request_kind, request_count)
		VALUES ($1, $2, $3)
	`, ct, kind, n)
	if err != nil {
		return fmt.Errorf("record rate grant: %w", err)
	}
	return nil
}

func (r *RateGovernorRepo) SumWindow(ctx context.Context, ct domain.CheckType, kind domain.RequestKind) (int, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT SUM(request_count) FROM rate_counters
		WHERE check_type = $1 AND request_kind = $2 AND window_start > $3
	`, ct, kind, time.Now().Add(-60*time.Second)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum rate window: %w", err)
	}
	return int(total.Int64), nil
}
