package sweeper

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// Repository defines the data access contract for the stuck-batch
// sweeper.
type Repository interface {
	// SweepStuckBatches finds UserBatches with status=processing,
	// is_archived=false, at least one association, and zero
	// did_complete=false associations remaining, and transitions each to
	// completed. Uses the same conditional update the result applier uses
	// (it only changes a row whose status is not already 'completed'), so a
	// batch already completed by the applier is never double-completed
	// (spec.md §9 open question).
	SweepStuckBatches(ctx context.Context, checkType domain.CheckType) ([]domain.UserBatch, error)
}
