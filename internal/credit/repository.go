package credit

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// Repository defines the data access contract for the credit ledger.
// Implementations must perform ReserveOnly and DeductForBatch atomically
// with respect to concurrent callers for the same (user, check type).
type Repository interface {
	// ReserveOnly sums non-expired subscription credits and the one-off
	// account balance and reports whether the sum covers n. It performs no
	// mutation — reservation is advisory, deduction is authoritative
	// (spec.md §4.2).
	ReserveOnly(ctx context.Context, userID string, checkType domain.CheckType, n int) (ok bool, total int, err error)

	// DeductForBatch counts the batch's associations, consumes subscription
	// credits first (from the single subscription row), then one-off balance for the
	// remainder, and appends a CreditHistory row for the total. Returns
	// ErrInsufficientCredits if the remainder exceeds the one-off balance;
	// in that case no mutation is applied.
	DeductForBatch(ctx context.Context, userID string, checkType domain.CheckType, batchID int64) (newTotal int, actualN int, err error)
}
