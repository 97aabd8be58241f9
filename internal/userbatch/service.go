package userbatch

import (
	"context"
	"fmt"

	"github.com/ignite/veribatch/internal/credit"
	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/normalize"
	"github.com/ignite/veribatch/internal/pkg/logger"
)

// CreditLedger is the subset of credit.Service Submit depends on.
type CreditLedger interface {
	ReserveOnly(ctx context.Context, userID string, checkType domain.CheckType, n int) (bool, int, error)
	DeductForBatch(ctx context.Context, userID string, checkType domain.CheckType, batchID int64) (newTotal int, actualN int, err error)
}

// Notifier fires the fire-and-forget completion hook (spec.md §4.7, §6).
// Matches resultapplier.Notifier so both callers can share one SQS-backed
// implementation.
type Notifier interface {
	NotifyCompletion(ctx context.Context, userID string, checkType domain.CheckType, batchID int64, title string) error
}

// EnrichmentLauncher kicks off the enrichment pipeline for a newly
// completed batch. Matches resultapplier.EnrichmentLauncher.
type EnrichmentLauncher interface {
	LaunchForBatch(ctx context.Context, batchID int64, checkType domain.CheckType)
}

// Service implements user-batch submission, pause/resume, and status reads.
type Service struct {
	repo       Repository
	credits    CreditLedger
	notifier   Notifier
	enrichment EnrichmentLauncher
}

// NewService creates a user-batch service backed by the given repository
// and credit ledger. notifier and enrichment are optional (nil is safe)
// and are only exercised by the full-cache-hit completion path in Submit,
// where a batch completes with no ProviderBatch ever created (spec.md §8a).
func NewService(repo Repository, credits CreditLedger, notifier Notifier, enrichment EnrichmentLauncher) *Service {
	return &Service{repo: repo, credits: credits, notifier: notifier, enrichment: enrichment}
}

// Submit creates a new user batch from already-extracted nominal email
// addresses, reserving and then deducting credits for the exact
// association count (including cached hits), and transitions the batch
// from draft to queued on success. Returns credit.ErrInsufficientCredits
// and creates no batch if the reservation check fails; if the deduction
// itself then fails, the created batch stays in draft and is returned
// together with the wrapped error.
func (s *Service) Submit(ctx context.Context, userID string, checkType domain.CheckType, title string, source domain.SourceFileMetadata, nominalEmails []string) (*domain.UserBatch, error) {
	if len(nominalEmails) == 0 {
		return nil, ErrEmptySource
	}

	stripped := make([]string, 0, len(nominalEmails))
	strippedOf := make(map[string]string, len(nominalEmails)) // stripped -> last nominal seen
	seen := make(map[string]bool, len(nominalEmails))
	for _, nominal := range nominalEmails {
		if !normalize.Valid(nominal) {
			continue
		}
		st := normalize.Strip(nominal)
		strippedOf[st] = normalize.Nominal(nominal)
		if seen[st] {
			continue
		}
		seen[st] = true
		stripped = append(stripped, st)
	}
	if len(stripped) == 0 {
		return nil, ErrEmptySource
	}

	ok, _, err := s.credits.ReserveOnly(ctx, userID, checkType, len(stripped))
	if err != nil {
		return nil, fmt.Errorf("userbatch: reserve credits: %w", err)
	}
	if !ok {
		return nil, credit.ErrInsufficientCredits
	}

	globalIDs, cached, err := s.repo.ResolveGlobalIDs(ctx, checkType, stripped)
	if err != nil {
		return nil, fmt.Errorf("userbatch: resolve global ids: %w", err)
	}

	rows := make([]NewAssociation, 0, len(stripped))
	for _, st := range stripped {
		isCached := cached[st]
		rows = append(rows, NewAssociation{
			EmailNominal:  strippedOf[st],
			EmailStripped: st,
			UsedCached:    isCached,
			DidComplete:   isCached,
		})
	}

	batch := &domain.UserBatch{
		UserID:      userID,
		CheckType:   checkType,
		Title:       title,
		Status:      domain.BatchDraft,
		TotalEmails: len(rows),
		S3Metadata:  &domain.S3Metadata{Original: &source},
	}

	batchID, err := s.repo.CreateWithAssociations(ctx, batch, globalIDs, rows)
	if err != nil {
		return nil, fmt.Errorf("userbatch: create batch: %w", err)
	}
	batch.ID = batchID

	if _, _, err := s.credits.DeductForBatch(ctx, userID, checkType, batchID); err != nil {
		return batch, fmt.Errorf("userbatch: deduct credits for batch %d: %w", batchID, err)
	}

	completed := 0
	for _, r := range rows {
		if r.DidComplete {
			completed++
		}
	}

	// Every address already had a cached result: the batch is done before
	// any ProviderBatch is ever created (spec.md §8 scenario a). Transition
	// straight to completed and fire the completion hook synchronously,
	// since nothing else will ever pick this batch up — the packer only
	// selects associations with used_cached = false, and the sweeper only
	// scans batches already in processing.
	if completed == len(rows) {
		if err := s.repo.TransitionStatus(ctx, batchID, domain.BatchDraft, domain.BatchCompleted); err != nil {
			return batch, fmt.Errorf("userbatch: complete batch %d: %w", batchID, err)
		}
		batch.Status = domain.BatchCompleted
		s.fireCompletionHook(ctx, *batch)
		return batch, nil
	}

	if err := s.repo.TransitionStatus(ctx, batchID, domain.BatchDraft, domain.BatchQueued); err != nil {
		return batch, fmt.Errorf("userbatch: queue batch %d: %w", batchID, err)
	}
	batch.Status = domain.BatchQueued

	return batch, nil
}

// fireCompletionHook notifies and launches enrichment for a batch that
// completed synchronously inside Submit. Both are best-effort, matching
// resultapplier.Service's post-ApplyCompletion hook (spec.md §4.7).
func (s *Service) fireCompletionHook(ctx context.Context, b domain.UserBatch) {
	if s.notifier != nil {
		if err := s.notifier.NotifyCompletion(ctx, b.UserID, b.CheckType, b.ID, b.Title); err != nil {
			logger.Error("userbatch notify completion failed", "batch_id", b.ID, "error", err)
		}
	}
	if s.enrichment != nil {
		s.enrichment.LaunchForBatch(ctx, b.ID, b.CheckType)
	}
}

// Pause moves a batch from queued or processing to paused.
func (s *Service) Pause(ctx context.Context, id int64) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if b.Status != domain.BatchQueued && b.Status != domain.BatchProcessing {
		return ErrInvalidTransition
	}
	if err := s.repo.TransitionStatus(ctx, id, b.Status, domain.BatchPaused); err != nil {
		return fmt.Errorf("userbatch: pause %d: %w", id, err)
	}
	return nil
}

// Resume moves a paused batch back to queued so the packer can pick its
// remaining associations back up.
func (s *Service) Resume(ctx context.Context, id int64) error {
	if err := s.repo.TransitionStatus(ctx, id, domain.BatchPaused, domain.BatchQueued); err != nil {
		return fmt.Errorf("userbatch: resume %d: %w", id, err)
	}
	return nil
}

// Status returns a snapshot of a batch's progress: the batch row, the
// completed/total association counts, and, once enrichment has started,
// its progress.
type Status struct {
	Batch      domain.UserBatch
	Completed  int
	Total      int
	Enrichment *domain.EnrichmentProgress
}

// GetStatus assembles a Status snapshot for a batch.
func (s *Service) GetStatus(ctx context.Context, id int64) (*Status, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	total, completed, err := s.repo.CountAssociations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("userbatch: count associations for %d: %w", id, err)
	}
	enrichment, err := s.repo.GetEnrichmentProgress(ctx, id, b.CheckType)
	if err != nil {
		return nil, fmt.Errorf("userbatch: enrichment progress for %d: %w", id, err)
	}
	return &Status{Batch: *b, Completed: completed, Total: total, Enrichment: enrichment}, nil
}

// List returns a user's batches for a check type.
func (s *Service) List(ctx context.Context, userID string, checkType domain.CheckType) ([]domain.UserBatch, error) {
	return s.repo.ListForUser(ctx, userID, checkType)
}
