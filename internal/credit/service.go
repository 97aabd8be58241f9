package credit

import (
	"context"
	"fmt"

	"github.com/ignite/veribatch/internal/domain"
)

// Service implements credit ledger business logic atop a Repository.
// All public methods are safe for concurrent use; atomicity of the
// underlying mutations is the Repository's responsibility.
type Service struct {
	repo Repository
}

// NewService creates a credit ledger service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ReserveOnly reports whether the user has at least n credits available for
// checkType across subscription and one-off pools. It does not mutate any
// balance; callers use it ahead of accepting a submission so the user can
// be told up front whether they have enough credits.
func (s *Service) ReserveOnly(ctx context.Context, userID string, checkType domain.CheckType, n int) (bool, int, error) {
	if n <= 0 {
		return true, 0, nil
	}
	ok, total, err := s.repo.ReserveOnly(ctx, userID, checkType, n)
	if err != nil {
		return false, 0, fmt.Errorf("credit: reserve only: %w", err)
	}
	return ok, total, nil
}

// DeductForBatch performs the authoritative deduction for a started batch,
// exact to its association count (including cached emails). It returns
// ErrInsufficientCredits if the user's balance cannot cover it.
func (s *Service) DeductForBatch(ctx context.Context, userID string, checkType domain.CheckType, batchID int64) (newTotal int, actualN int, err error) {
	newTotal, actualN, err = s.repo.DeductForBatch(ctx, userID, checkType, batchID)
	if err != nil {
		return 0, 0, fmt.Errorf("credit: deduct for batch %d: %w", batchID, err)
	}
	return newTotal, actualN, nil
}
