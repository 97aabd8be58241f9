package userbatch

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// NewAssociation is one row to be associated with a batch at creation time,
// already resolved against the GlobalEmail/GlobalResult cache.
type NewAssociation struct {
	EmailNominal  string
	EmailStripped string
	UsedCached    bool
	DidComplete   bool
}

// Repository defines the data access contract for user batches.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ResolveGlobalIDs get-or-creates a GlobalEmail row per stripped
	// address and reports, for each, whether a GlobalResult already
	// exists for checkType (the cached-hit path, spec.md §3 invariant 3).
	ResolveGlobalIDs(ctx context.Context, checkType domain.CheckType, stripped []string) (globalIDs map[string]int64, cached map[string]bool, err error)

	// CreateWithAssociations inserts the UserBatch row (status draft) and
	// its BatchEmailAssociation rows in one transaction, returning the
	// new batch ID.
	CreateWithAssociations(ctx context.Context, b *domain.UserBatch, globalIDs map[string]int64, rows []NewAssociation) (batchID int64, err error)

	Get(ctx context.Context, id int64) (*domain.UserBatch, error)

	ListForUser(ctx context.Context, userID string, checkType domain.CheckType) ([]domain.UserBatch, error)

	// TransitionStatus conditionally moves a batch from `from` to `to`,
	// returning ErrInvalidTransition if the current status doesn't match.
	TransitionStatus(ctx context.Context, id int64, from, to domain.UserBatchStatus) error

	// CountAssociations returns the total and completed association counts
	// for a batch, used to report submission-time progress.
	CountAssociations(ctx context.Context, id int64) (total, completed int, err error)

	GetEnrichmentProgress(ctx context.Context, id int64, checkType domain.CheckType) (*domain.EnrichmentProgress, error)
}
