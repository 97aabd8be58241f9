package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/veribatch/internal/credit"
	"github.com/ignite/veribatch/internal/domain"
)

// CreditRepo implements credit.Repository against PostgreSQL.
type CreditRepo struct{ db *sql.DB }

// NewCreditRepo creates a Postgres-backed credit ledger repository.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

func (r *CreditRepo) ReserveOnly(ctx context.Context, userID string, checkType domain.CheckType, n int) (bool, int, error) {
	var subLeft sql.NullInt64
	var expiry sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT credits_left, expiry_ts FROM subscription_credits
		WHERE user_id = $1 AND check_type = $2
	`, userID, checkType).Scan(&subLeft, &expiry)
	if err != nil && err != sql.ErrNoRows {
		return false, 0, fmt.Errorf("reserve only: subscription lookup: %w", err)
	}

	var balance int
	err = r.db.QueryRowContext(ctx, `
		SELECT current_balance FROM credit_accounts WHERE user_id = $1 AND check_type = $2
	`, userID, checkType).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return false, 0, fmt.Errorf("reserve only: account lookup: %w", err)
	}

	total := balance
	if subLeft.Valid && expiry.Valid && expiry.Time.After(time.Now()) {
		total += int(subLeft.Int64)
	}
	return total >= n, total, nil
}

func (r *CreditRepo) DeductForBatch(ctx context.Context, userID string, checkType domain.CheckType, batchID int64) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("deduct for batch %d: begin tx: %w", batchID, err)
	}
	defer tx.Rollback()

	var actualN int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM batch_email_associations WHERE batch_id = $1
	`, batchID).Scan(&actualN); err != nil {
		return 0, 0, fmt.Errorf("deduct for batch %d: count associations: %w", batchID, err)
	}

	var subLeft int
	var expiry time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT credits_left, expiry_ts FROM subscription_credits
		WHERE user_id = $1 AND check_type = $2
		FOR UPDATE
	`, userID, checkType).Scan(&subLeft, &expiry)
	hasSubRow := true
	if err == sql.ErrNoRows {
		hasSubRow = false
	} else if err != nil {
		return 0, 0, fmt.Errorf("deduct for batch %d: lock subscription: %w", batchID, err)
	}
	if hasSubRow && !expiry.After(time.Now()) {
		subLeft = 0
	}

	// The no-op DO UPDATE both ensures the account row exists and takes
	// its row lock for the rest of this transaction.
	var balance int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO credit_accounts (user_id, check_type, current_balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id, check_type) DO UPDATE SET current_balance = credit_accounts.current_balance
		RETURNING current_balance
	`, userID, checkType).Scan(&balance)
	if err != nil {
		return 0, 0, fmt.Errorf("deduct for batch %d: lock account: %w", batchID, err)
	}

	subUse := subLeft
	if subUse > actualN {
		subUse = actualN
	}
	remainder := actualN - subUse
	if remainder > balance {
		return 0, 0, credit.ErrInsufficientCredits
	}

	if hasSubRow && subUse > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE subscription_credits SET credits_left = credits_left - $1
			WHERE user_id = $2 AND check_type = $3
		`, subUse, userID, checkType); err != nil {
			return 0, 0, fmt.Errorf("deduct for batch %d: update subscription: %w", batchID, err)
		}
	}
	if remainder > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE credit_accounts SET current_balance = current_balance - $1
			WHERE user_id = $2 AND check_type = $3
		`, remainder, userID, checkType); err != nil {
			return 0, 0, fmt.Errorf("deduct for batch %d: update account: %w", batchID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO credit_history (user_id, check_type, credits_used, event_type, batch_id)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, checkType, actualN, domain.EventUsage, batchID); err != nil {
		return 0, 0, fmt.Errorf("deduct for batch %d: insert history: %w", batchID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("deduct for batch %d: commit: %w", batchID, err)
	}

	newTotal := (subLeft - subUse) + (balance - remainder)
	return newTotal, actualN, nil
}
