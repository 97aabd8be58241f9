package packer

import (
	"context"
	"time"

	"github.com/ignite/veribatch/internal/domain"
)

// PoolRow is one association eligible to be packed into a provider batch.
type PoolRow struct {
	UserBatchID      int64
	EmailGlobalID    int64
	EmailStripped    string
	UserBatchCreated time.Time
}

// Repository defines the data access contract for the packer.
type Repository interface {
	// CountInFlight returns the number of ProviderBatches in {pending,
	// processing} for checkType, used to compute remaining capacity
	// against the deployment cap of 10 (spec.md §3 invariant 6).
	CountInFlight(ctx context.Context, checkType domain.CheckType) (int, error)

	// SelectPool returns up to limit eligible association rows ordered by
	// (UserBatch.created_ts ASC, email_global_id ASC) per spec.md §4.4's
	// fairness and tie-break rules.
	SelectPool(ctx context.Context, checkType domain.CheckType, limit int) ([]PoolRow, error)

	// SubmitPool atomically: transitions each referenced user batch to
	// processing, inserts ProviderBatchEmail rows for the pool, and
	// inserts the new ProviderBatch row (status pending).
	SubmitPool(ctx context.Context, checkType domain.CheckType, providerBatchID string, pool []PoolRow) error
}
