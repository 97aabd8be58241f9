package packer

import (
	"context"

	"github.com/ignite/veribatch/internal/domain"
)

// RateGate is the subset of rategovernor.Gate the packer depends on.
type RateGate interface {
	Check(ctx context.Context, ct domain.CheckType, kind domain.RequestKind, n int) (ok bool, current int, err error)
	Record(ctx context.Context, ct domain.CheckType, kind domain.RequestKind, n int) error
}
