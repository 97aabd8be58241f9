package resultapplier

import (
	"context"
	"fmt"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/logger"
)

// Service applies provider-batch completion payloads and fires the
// downstream completion hook.
type Service struct {
	repo       Repository
	notifier   Notifier
	archiver   Archiver
	enrichment EnrichmentLauncher
}

// NewService creates a result applier. notifier, archiver, and enrichment
// are all best-effort: their failures are logged, never propagated, per
// spec.md §4.7's "fire-and-forget" contract.
func NewService(repo Repository, notifier Notifier, archiver Archiver, enrichment EnrichmentLauncher) *Service {
	return &Service{repo: repo, notifier: notifier, archiver: archiver, enrichment: enrichment}
}

// Apply applies a completion payload for providerBatchID. Safe to call
// more than once for the same provider batch (redelivery is a no-op).
func (s *Service) Apply(ctx context.Context, checkType domain.CheckType, providerBatchID string, results []domain.ProviderResult) error {
	completed, err := s.repo.ApplyCompletion(ctx, checkType, providerBatchID, results)
	if err != nil {
		return fmt.Errorf("resultapplier: apply completion for %s: %w", providerBatchID, err)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveCompletion(ctx, checkType, providerBatchID, results); err != nil {
			logger.Error("resultapplier archive completion failed", "provider_batch_id", providerBatchID, "error", err)
		}
	}

	for _, b := range completed {
		s.fireCompletionHook(ctx, b)
	}
	return nil
}

// fireCompletionHook notifies and launches enrichment for a newly
// completed user batch. Both are best-effort (spec.md §4.7).
func (s *Service) fireCompletionHook(ctx context.Context, b domain.UserBatch) {
	if s.notifier != nil {
		if err := s.notifier.NotifyCompletion(ctx, b.UserID, b.CheckType, b.ID, b.Title); err != nil {
			logger.Error("resultapplier notify completion failed", "batch_id", b.ID, "error", err)
		}
	}
	if s.enrichment != nil {
		s.enrichment.LaunchForBatch(ctx, b.ID, b.CheckType)
	}
}
