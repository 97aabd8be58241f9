package enrichment

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/normalize"
	"github.com/ignite/veribatch/internal/pkg/distlock"
	"github.com/ignite/veribatch/internal/pkg/logger"
	"github.com/ignite/veribatch/internal/sourceparse"
)

// progressInterval is how often EnrichmentProgress is updated while
// streaming rows (spec.md §4.8 step 8).
const progressInterval = 10_000

// runTimeout bounds one enrichment run; a run stuck past this is abandoned
// and its lock expires, letting a future attempt retry from scratch.
const runTimeout = 2 * time.Hour

// lockTTL is the named-lease lifetime guarding one (batch, check type)
// run (spec.md §4.8 "Concurrency").
const lockTTL = runTimeout + 5*time.Minute

// Service runs the enrichment pipeline for completed user batches.
type Service struct {
	repo  Repository
	store ObjectStore
	redis *redis.Client
}

// NewService creates a Service. redisClient may be nil, in which case
// concurrent launches for the same batch are only deduplicated within
// this process (spec.md §4.8 allows this).
func NewService(repo Repository, store ObjectStore, redisClient *redis.Client) *Service {
	return &Service{repo: repo, store: store, redis: redisClient}
}

// LaunchForBatch starts enrichment for batchID asynchronously. It never
// blocks the caller (the result applier and sweeper both call it from
// inside their own transactions' aftermath).
func (s *Service) LaunchForBatch(ctx context.Context, batchID int64, checkType domain.CheckType) {
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		key := fmt.Sprintf("enrichment:%s:%d", checkType, batchID)
		lock := distlock.NewLock(s.redis, nil, key, lockTTL)
		acquired, err := lock.Acquire(runCtx)
		if err != nil {
			logger.Error("enrichment acquire lease failed", "batch_id", batchID, "check_type", checkType, "error", err)
			return
		}
		if !acquired {
			return // another process is already running this batch
		}
		defer lock.Release(runCtx)

		if err := s.run(runCtx, batchID, checkType); err != nil {
			logger.Error("enrichment run failed", "batch_id", batchID, "check_type", checkType, "error", err)
			if mfErr := s.repo.MarkFailed(runCtx, batchID, checkType, err.Error()); mfErr != nil {
				logger.Error("enrichment mark batch failed", "batch_id", batchID, "check_type", checkType, "error", mfErr)
			}
		}
	}()
}

// run executes the full pipeline described in spec.md §4.8.
func (s *Service) run(ctx context.Context, batchID int64, checkType domain.CheckType) error {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	if batch.S3Metadata == nil || batch.S3Metadata.Original == nil {
		return fmt.Errorf("batch has no source file metadata")
	}
	src := batch.S3Metadata.Original

	emailCol, ok := src.ColumnMapping["email"]
	if !ok {
		return fmt.Errorf("source has no email column mapping")
	}

	if err := s.repo.MarkProcessing(ctx, batchID, checkType); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	results, err := s.repo.LoadResults(ctx, batchID, checkType)
	if err != nil {
		return fmt.Errorf("load cached results: %w", err)
	}

	rc, err := s.store.Open(ctx, src.S3Key)
	if err != nil {
		return fmt.Errorf("open source object: %w", err)
	}
	defer rc.Close()

	rows, err := sourceparse.Open(src.MimeType, rc)
	if err != nil {
		return fmt.Errorf("open source stream: %w", err)
	}

	header, err := rows.Next()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}
	if emailCol >= len(header) {
		return fmt.Errorf("email column %d exceeds header width %d", emailCol, len(header))
	}

	outHeader := append(append([]string{}, header...), outcomeColumns(checkType)...)
	writers := map[domain.ExportKind]*partitionWriter{}
	defer func() {
		for _, w := range writers {
			w.Close()
		}
	}()

	writerFor := func(kind domain.ExportKind) (*partitionWriter, error) {
		if w, ok := writers[kind]; ok {
			return w, nil
		}
		w, err := newPartitionWriter(ctx, s.store, exportKey(batch, checkType, kind), kind, outHeader)
		if err != nil {
			return nil, err
		}
		writers[kind] = w
		return w, nil
	}

	processed := make(map[string]bool, len(results))
	var written int64

	for {
		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		if emailCol >= len(row) {
			continue // missing email cell
		}

		stripped := normalize.Strip(row[emailCol])
		result, ok := results[stripped]
		if !ok || result == nil {
			continue // no cached result for this address
		}
		if processed[stripped] {
			continue // duplicate within the source file
		}
		if !isExportableStatus(result.Status) {
			continue
		}
		processed[stripped] = true

		label := result.Translate()
		outRow := make([]string, 0, len(row)+2)
		outRow = append(outRow, row...)
		outRow = append(outRow, string(label))
		if checkType == domain.Deliverable {
			server := result.Provider
			if server == "other" {
				server = ""
			}
			outRow = append(outRow, server)
		}

		for _, kind := range domain.ExportKindsFor(label) {
			w, err := writerFor(kind)
			if err != nil {
				return err
			}
			if err := w.WriteRow(outRow); err != nil {
				return err
			}
		}

		written++
		if written%progressInterval == 0 {
			if err := s.repo.UpdateProgress(ctx, batchID, checkType, written); err != nil {
				return fmt.Errorf("update progress: %w", err)
			}
		}
	}

	exports := make(map[domain.ExportKind]domain.ExportArtifact, len(writers))
	now := time.Now()
	for kind, w := range writers {
		rowCount, err := w.Close()
		if err != nil {
			return err
		}
		exports[kind] = domain.ExportArtifact{
			S3Key:       exportKey(batch, checkType, kind),
			GeneratedAt: now,
			Size:        rowCount,
			Status:      "completed",
		}
	}

	if err := s.repo.MarkCompleted(ctx, batchID, checkType, exports); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// outcomeColumns returns the synthesised columns appended to every
// enriched row (spec.md §4.8 step 6).
func outcomeColumns(checkType domain.CheckType) []string {
	if checkType == domain.Catchall {
		return []string{"Catch-All Status"}
	}
	return []string{"OmniVerifier Status", "OmniVerifier Mail Server"}
}

// isExportableStatus reports whether a cached result's raw status is
// eligible for export (spec.md §4.8 step 5).
func isExportableStatus(status domain.DeliverableStatus) bool {
	switch status {
	case domain.StatusDeliverable, domain.StatusUndeliverable, domain.StatusRisky:
		return true
	default:
		return false
	}
}

// exportKey builds the S3 key for one export partition.
func exportKey(batch *domain.UserBatch, checkType domain.CheckType, kind domain.ExportKind) string {
	return fmt.Sprintf("exports/%s/%d/%s.csv", checkType, batch.ID, kind)
}
