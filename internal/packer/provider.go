package packer

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// Provider submits an email pool to the verification provider and returns
// its external batch identifier.
type Provider interface {
	CreateBatch(ctx context.Context, checkType domain.CheckType, emails []string) (providerBatchID string, err error)
}
