package enrichment

import (
	"context"
	"io"

	"github.com/ignite/veribatch/internal/domain"
)

// Repository defines the data access contract for one enrichment run.
type Repository interface {
	// GetBatch loads the user batch, including its source s3_metadata.
	GetBatch(ctx context.Context, batchID int64) (*domain.UserBatch, error)

	// LoadResults loads every cached GlobalResult for the batch's check
	// type, keyed by email_stripped.lowercase() (spec.md §4.8 step 2).
	LoadResults(ctx context.Context, batchID int64, checkType domain.CheckType) (map[string]*domain.GlobalResult, error)

	// MarkProcessing starts (or restarts) an EnrichmentProgress row.
	MarkProcessing(ctx context.Context, batchID int64, checkType domain.CheckType) error

	// UpdateProgress reports rows processed so far, called every 10,000
	// rows (spec.md §4.8 step 8).
	UpdateProgress(ctx context.Context, batchID int64, checkType domain.CheckType, rowsProcessed int64) error

	// MarkCompleted records the generated export artifacts on the batch
	// and marks EnrichmentProgress completed (spec.md §4.8 step 9).
	MarkCompleted(ctx context.Context, batchID int64, checkType domain.CheckType, exports map[domain.ExportKind]domain.ExportArtifact) error

	// MarkFailed records an error message and marks EnrichmentProgress
	// failed.
	MarkFailed(ctx context.Context, batchID int64, checkType domain.CheckType, errMsg string) error
}

// ObjectStore is the narrow slice of objectstorage.Store the pipeline
// needs: reading the source object and writing export objects.
type ObjectStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	UploadExport(ctx context.Context, key, contentType string, r io.Reader) error
}
