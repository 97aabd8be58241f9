package sweeper

import (
	"context"
	"time"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/logger"
)

// Notifier fires the completion hook notification.
type Notifier interface {
	NotifyCompletion(ctx context.Context, userID string, checkType domain.CheckType, batchID int64, title string) error
}

// EnrichmentLauncher launches enrichment for a newly completed batch.
type EnrichmentLauncher interface {
	LaunchForBatch(ctx context.Context, batchID int64, checkType domain.CheckType)
}

// Sweeper runs the periodic stuck-batch sweep for one check type.
type Sweeper struct {
	repo       Repository
	notifier   Notifier
	enrichment EnrichmentLauncher

	checkType domain.CheckType
	interval  time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	lastRunAt time.Time
	healthy   bool
}

// New creates a Sweeper for a single check type.
func New(repo Repository, notifier Notifier, enrichment EnrichmentLauncher, checkType domain.CheckType, interval time.Duration) *Sweeper {
	return &Sweeper{
		repo:       repo,
		notifier:   notifier,
		enrichment: enrichment,
		checkType:  checkType,
		interval:   interval,
		healthy:    true,
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *Sweeper) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go func() {
		logger.Info("sweeper starting", "check_type", s.checkType)
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				logger.Info("sweeper stopped", "check_type", s.checkType)
				return
			case <-ticker.C:
				s.runOnce()
			}
		}
	}()
}

// Stop cancels the sweep loop.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sweeper) IsHealthy() bool      { return s.healthy }
func (s *Sweeper) LastRunAt() time.Time { return s.lastRunAt }

func (s *Sweeper) runOnce() {
	s.lastRunAt = time.Now()

	completed, err := s.repo.SweepStuckBatches(s.ctx, s.checkType)
	if err != nil {
		logger.Error("sweeper run failed", "check_type", s.checkType, "error", err)
		s.healthy = false
		return
	}
	s.healthy = true

	for _, b := range completed {
		logger.Info("sweeper closed stuck batch", "check_type", s.checkType, "batch_id", b.ID)
		if s.notifier != nil {
			if err := s.notifier.NotifyCompletion(s.ctx, b.UserID, b.CheckType, b.ID, b.Title); err != nil {
				logger.Error("sweeper notify completion failed", "check_type", s.checkType, "batch_id", b.ID, "error", err)
			}
		}
		if s.enrichment != nil {
			s.enrichment.LaunchForBatch(s.ctx, b.ID, b.CheckType)
		}
	}
}
