package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/logger"
	"github.com/ignite/veribatch/internal/providerclient"
)

// Poller drives the provider-batch lifecycle for one check type.
type Poller struct {
	repo     Repository
	provider Provider
	applier  ResultApplier

	checkType domain.CheckType
	interval  time.Duration
	timeout   time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	lastRunAt time.Time
	healthy   bool
}

// New creates a Poller for a single check type.
func New(repo Repository, provider Provider, applier ResultApplier, checkType domain.CheckType, interval time.Duration) *Poller {
	return &Poller{
		repo:      repo,
		provider:  provider,
		applier:   applier,
		checkType: checkType,
		interval:  interval,
		timeout:   DefaultTimeout,
		healthy:   true,
	}
}

// WithTimeout overrides the in-flight age before a batch is declared
// failed, default DefaultTimeout.
func (p *Poller) WithTimeout(d time.Duration) *Poller {
	p.timeout = d
	return p
}

// Start launches the polling loop in a background goroutine.
func (p *Poller) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go func() {
		logger.Info("lifecycle poller starting", "check_type", p.checkType)
		p.runOnce()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				logger.Info("lifecycle poller stopped", "check_type", p.checkType)
				return
			case <-ticker.C:
				p.runOnce()
			}
		}
	}()
}

// Stop cancels the polling loop.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) IsHealthy() bool      { return p.healthy }
func (p *Poller) LastRunAt() time.Time { return p.lastRunAt }

func (p *Poller) runOnce() {
	p.lastRunAt = time.Now()
	ctx := p.ctx

	batches, err := p.repo.ListInFlight(ctx, p.checkType)
	if err != nil {
		logger.Error("lifecycle list in-flight", "check_type", p.checkType, "error", err)
		p.healthy = false
		return
	}
	p.healthy = true

	for _, b := range batches {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.pollOne(ctx, b)
	}
}

func (p *Poller) pollOne(ctx context.Context, b domain.ProviderBatch) {
	if time.Since(b.CreatedTS) > p.timeout {
		logger.Warn("lifecycle provider batch timed out", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "timeout", p.timeout)
		if err := p.repo.MarkFailed(ctx, b.ProviderBatchID, p.checkType); err != nil {
			logger.Error("lifecycle mark timed-out batch failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", err)
		}
		return
	}

	status, err := p.provider.Status(ctx, p.checkType, b.ProviderBatchID)
	if err != nil {
		p.handleProviderError(ctx, b, err)
		return
	}

	switch status.Status {
	case "completed":
		results, err := p.provider.FetchResults(ctx, p.checkType, b.ProviderBatchID)
		if err != nil {
			p.handleProviderError(ctx, b, err)
			return
		}
		if err := p.applier.Apply(ctx, p.checkType, b.ProviderBatchID, results); err != nil {
			logger.Error("lifecycle apply results failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", err)
		}
	case "failed":
		if err := p.repo.MarkFailed(ctx, b.ProviderBatchID, p.checkType); err != nil {
			logger.Error("lifecycle mark failed batch failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", err)
		}
	default: // pending/processing
		if err := p.repo.UpdateProgress(ctx, b.ProviderBatchID, p.checkType, status.Processed); err != nil {
			logger.Error("lifecycle update progress failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", err)
		}
	}
}

// handleProviderError applies spec.md §4.5/§7's error taxonomy: 402 dead-
// letters immediately; rate-limit/5xx defer with a capped retry count
// before dead-lettering.
func (p *Poller) handleProviderError(ctx context.Context, b domain.ProviderBatch, err error) {
	if errors.Is(err, providerclient.ErrPaymentRequired) {
		logger.Warn("lifecycle provider batch dead-lettered: payment required", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID)
		if ferr := p.repo.MarkFailed(ctx, b.ProviderBatchID, p.checkType); ferr != nil {
			logger.Error("lifecycle mark dead-lettered batch failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", ferr)
		}
		return
	}

	if errors.Is(err, providerclient.ErrRateLimited) || errors.Is(err, providerclient.ErrServerError) {
		attempts, aerr := p.repo.IncrementAttempt(ctx, b.ProviderBatchID, p.checkType)
		if aerr != nil {
			logger.Error("lifecycle increment attempt failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", aerr)
			return
		}
		if attempts >= MaxTransientAttempts {
			logger.Warn("lifecycle provider batch exhausted retries", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "attempts", attempts)
			if ferr := p.repo.MarkFailed(ctx, b.ProviderBatchID, p.checkType); ferr != nil {
				logger.Error("lifecycle mark exhausted batch failed", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", ferr)
			}
		}
		return
	}

	logger.Error("lifecycle provider batch status check error", "check_type", p.checkType, "provider_batch_id", b.ProviderBatchID, "error", err)
}
