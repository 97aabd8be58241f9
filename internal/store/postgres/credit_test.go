package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/veribatch/internal/credit"
	"github.com/ignite/veribatch/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestCreditRepo_ReserveOnly_AccountOnly(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT credits_left, expiry_ts FROM subscription_credits").
		WithArgs("user-1", domain.Deliverable).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT current_balance FROM credit_accounts").
		WithArgs("user-1", domain.Deliverable).
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(50))

	repo := NewCreditRepo(db)
	ok, total, err := repo.ReserveOnly(context.Background(), "user-1", domain.Deliverable, 40)
	if err != nil {
		t.Fatalf("ReserveOnly() error: %v", err)
	}
	if !ok {
		t.Error("expected ReserveOnly to succeed with sufficient balance")
	}
	if total != 50 {
		t.Errorf("total = %d, want 50", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreditRepo_ReserveOnly_IncludesLiveSubscription(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT credits_left, expiry_ts FROM subscription_credits").
		WithArgs("user-1", domain.Catchall).
		WillReturnRows(sqlmock.NewRows([]string{"credits_left", "expiry_ts"}).
			AddRow(30, time.Now().Add(24*time.Hour)))
	mock.ExpectQuery("SELECT current_balance FROM credit_accounts").
		WithArgs("user-1", domain.Catchall).
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(10))

	repo := NewCreditRepo(db)
	ok, total, err := repo.ReserveOnly(context.Background(), "user-1", domain.Catchall, 35)
	if err != nil {
		t.Fatalf("ReserveOnly() error: %v", err)
	}
	if !ok {
		t.Error("expected ReserveOnly to succeed: subscription + account covers request")
	}
	if total != 40 {
		t.Errorf("total = %d, want 40", total)
	}
}

func TestCreditRepo_ReserveOnly_ExpiredSubscriptionExcluded(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT credits_left, expiry_ts FROM subscription_credits").
		WithArgs("user-1", domain.Deliverable).
		WillReturnRows(sqlmock.NewRows([]string{"credits_left", "expiry_ts"}).
			AddRow(100, time.Now().Add(-time.Hour)))
	mock.ExpectQuery("SELECT current_balance FROM credit_accounts").
		WithArgs("user-1", domain.Deliverable).
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(10))

	repo := NewCreditRepo(db)
	ok, total, err := repo.ReserveOnly(context.Background(), "user-1", domain.Deliverable, 20)
	if err != nil {
		t.Fatalf("ReserveOnly() error: %v", err)
	}
	if ok {
		t.Error("expired subscription credits must not count toward the reservation")
	}
	if total != 10 {
		t.Errorf("total = %d, want 10 (account balance only)", total)
	}
}

func TestCreditRepo_DeductForBatch_InsufficientCredits(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM batch_email_associations").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(100))
	mock.ExpectQuery("SELECT credits_left, expiry_ts FROM subscription_credits").
		WithArgs("user-1", domain.Deliverable).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO credit_accounts").
		WithArgs("user-1", domain.Deliverable).
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(5))
	mock.ExpectRollback()

	repo := NewCreditRepo(db)
	_, _, err := repo.DeductForBatch(context.Background(), "user-1", domain.Deliverable, 7)
	if err != credit.ErrInsufficientCredits {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreditRepo_DeductForBatch_UsesSubscriptionFirst(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM batch_email_associations").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(50))
	mock.ExpectQuery("SELECT credits_left, expiry_ts FROM subscription_credits").
		WithArgs("user-1", domain.Deliverable).
		WillReturnRows(sqlmock.NewRows([]string{"credits_left", "expiry_ts"}).
			AddRow(30, time.Now().Add(time.Hour)))
	mock.ExpectQuery("INSERT INTO credit_accounts").
		WithArgs("user-1", domain.Deliverable).
		WillReturnRows(sqlmock.NewRows([]string{"current_balance"}).AddRow(100))
	mock.ExpectExec("UPDATE subscription_credits SET credits_left").
		WithArgs(30, "user-1", domain.Deliverable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE credit_accounts SET current_balance").
		WithArgs(20, "user-1", domain.Deliverable).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO credit_history").
		WithArgs("user-1", domain.Deliverable, 50, domain.EventUsage, int64(9)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewCreditRepo(db)
	newTotal, actualN, err := repo.DeductForBatch(context.Background(), "user-1", domain.Deliverable, 9)
	if err != nil {
		t.Fatalf("DeductForBatch() error: %v", err)
	}
	if actualN != 50 {
		t.Errorf("actualN = %d, want 50", actualN)
	}
	if newTotal != 80 {
		t.Errorf("newTotal = %d, want 80", newTotal)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
