package packer

import (
	"context"
	"time"

	"github.com/ignite/veribatch/internal/domain"
	"github.com/ignite/veribatch/internal/pkg/logger"
)

const (
	// MaxInFlightProviderBatches is the deployment-wide concurrent
	// provider-batch cap per check type (spec.md §3 invariant 6).
	MaxInFlightProviderBatches = 10
	// MaxPoolSize is the per-provider-batch email cap (spec.md §3
	// invariant 5).
	MaxPoolSize = 10000
)

// Packer runs the periodic packing loop for one check type.
type Packer struct {
	repo     Repository
	provider Provider
	gate     RateGate

	checkType domain.CheckType
	interval  time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	lastRunAt time.Time
	healthy   bool
}

// New creates a Packer for a single check type, polling every interval.
func New(repo Repository, provider Provider, gate RateGate, checkType domain.CheckType, interval time.Duration) *Packer {
	return &Packer{
		repo:      repo,
		provider:  provider,
		gate:      gate,
		checkType: checkType,
		interval:  interval,
		healthy:   true,
	}
}

// Start launches the packing loop in a background goroutine.
func (p *Packer) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go func() {
		logger.Info("packer starting", "check_type", p.checkType)
		p.runOnce()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.ctx.Done():
				logger.Info("packer stopped", "check_type", p.checkType)
				return
			case <-ticker.C:
				p.runOnce()
			}
		}
	}()
}

// Stop cancels the packing loop.
func (p *Packer) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Packer) IsHealthy() bool      { return p.healthy }
func (p *Packer) LastRunAt() time.Time { return p.lastRunAt }

func (p *Packer) runOnce() {
	p.lastRunAt = time.Now()
	ctx := p.ctx

	inFlight, err := p.repo.CountInFlight(ctx, p.checkType)
	if err != nil {
		logger.Error("packer count in-flight", "check_type", p.checkType, "error", err)
		p.healthy = false
		return
	}
	p.healthy = true

	capacityRemaining := MaxInFlightProviderBatches - inFlight
	for capacityRemaining > 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ok, _, err := p.gate.Check(ctx, p.checkType, domain.RequestCreateBatch, 1)
		if err != nil {
			logger.Error("packer rate check", "check_type", p.checkType, "error", err)
			return
		}
		if !ok {
			return
		}

		pool, err := p.repo.SelectPool(ctx, p.checkType, MaxPoolSize)
		if err != nil {
			logger.Error("packer select pool", "check_type", p.checkType, "error", err)
			return
		}
		if len(pool) == 0 {
			return
		}

		emails := make([]string, len(pool))
		for i, row := range pool {
			emails[i] = row.EmailStripped
		}

		providerBatchID, err := p.provider.CreateBatch(ctx, p.checkType, emails)
		if err != nil {
			logger.Error("packer create provider batch", "check_type", p.checkType, "error", err)
			return
		}
		if err := p.repo.SubmitPool(ctx, p.checkType, providerBatchID, pool); err != nil {
			logger.Error("packer submit pool", "check_type", p.checkType, "provider_batch_id", providerBatchID, "error", err)
			return
		}

		if err := p.gate.Record(ctx, p.checkType, domain.RequestCreateBatch, 1); err != nil {
			logger.Error("packer record rate grant", "check_type", p.checkType, "error", err)
		}

		capacityRemaining--
	}
}
