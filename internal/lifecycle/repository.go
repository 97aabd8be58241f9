package lifecycle

import (
	"context"
	"time"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/providerclient"
)

// Repository defines the data access contract for the lifecycle poller.
type Repository interface {
	// ListInFlight returns ProviderBatches in {pending, processing} for
	// checkType, ordered by created_ts ASC (spec.md §4.5).
	ListInFlight(ctx context.Context, checkType domain.CheckType) ([]domain.ProviderBatch, error)

	// UpdateProgress advances a batch to processing and records its
	// processed count.
	UpdateProgress(ctx context.Context, providerBatchID string, checkType domain.CheckType, processed int) error

	// MarkFailed transitions a batch to failed, terminal.
	MarkFailed(ctx context.Context, providerBatchID string, checkType domain.CheckType) error

	// IncrementAttempt records a transient-failure attempt and returns
	// the new attempt count, used to cap retries before failing a batch
	// (spec.md §4.5: "retries capped, e.g. 3 attempts").
	IncrementAttempt(ctx context.Context, providerBatchID string, checkType domain.CheckType) (attempts int, err error)
}

// Provider is the subset of the provider client the lifecycle poller
// depends on.
type Provider interface {
	Status(ctx context.Context, checkType domain.CheckType, providerBatchID string) (providerclient.StatusResult, error)
	FetchResults(ctx context.Context, checkType domain.CheckType, providerBatchID string) ([]domain.ProviderResult, error)
}

// ResultApplier is the subset of the result applier the lifecycle poller
// depends on.
type ResultApplier interface {
	Apply(ctx context.Context, checkType domain.CheckType, providerBatchID string, results []domain.ProviderResult) error
}

// MaxTransientAttempts is the cap on rate-limit/5xx retries before a
// provider batch is declared failed (spec.md §4.5).
const MaxTransientAttempts = 3

// DefaultTimeout is the deployment-configured maximum age for an
// in-flight provider batch before it is declared failed (spec.md §6).
const DefaultTimeout = 24 * time.Hour
