package resultapplier

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// Repository defines the data access contract for result application.
// ApplyCompletion must run as a single transaction and must mark the
// ProviderBatch completed before mutating GlobalResult/association rows,
// so that redelivery of the same completion event is idempotent
// (spec.md §4.6).
type Repository interface {
	// ApplyCompletion applies a provider batch's completion payload. If
	// the provider batch is already completed (redelivery), it returns
	// (nil, nil) without reapplying. Otherwise it upserts GlobalResult
	// rows, marks the resolved associations did_complete, and for every
	// distinct affected user batch whose associations are now all
	// complete, transitions it to completed and includes it in the
	// returned slice.
	ApplyCompletion(ctx context.Context, checkType domain.CheckType, providerBatchID string, results []domain.ProviderResult) (completed []domain.UserBatch, err error)
}

// Notifier fires the fire-and-forget completion hook (spec.md §4.7, §6).
type Notifier interface {
	NotifyCompletion(ctx context.Context, userID string, checkType domain.CheckType, batchID int64, title string) error
}

// Archiver durably records a raw completion payload (C12, SPEC_FULL §4).
type Archiver interface {
	ArchiveCompletion(ctx context.Context, checkType domain.CheckType, providerBatchID string, results []domain.ProviderResult) error
}

// EnrichmentLauncher kicks off the enrichment pipeline for a newly
// completed batch, asynchronously and de-duplicated per (batch, check
// type) (spec.md §4.8).
type EnrichmentLauncher interface {
	LaunchForBatch(ctx context.Context, batchID int64, checkType domain.CheckType)
}
