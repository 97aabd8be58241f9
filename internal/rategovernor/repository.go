package rategovernor

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// Repository persists the RateCounter audit trail. It is not on the hot
// path for admission decisions — Redis is — so callers may treat write
// failures here as non-fatal.
type Repository interface {
	// RecordGrant appends a RateCounter row for a successful admission.
	RecordGrant(ctx context.Context, ct domain.CheckType, kind domain.RequestKind, n int) error

	// SumWindow sums request_count for rows with window_start within the
	// last 60 seconds. Gate does not call it: admission reads only the
	// Redis counter.
	SumWindow(ctx context.Context, ct domain.CheckType, kind domain.RequestKind) (int, error)
}
