package credit

import "errors"

// Sentinel errors for the credit ledger.
var (
	// ErrInsufficientCredits is returned by DeductForBatch when the sum of
	// available subscription and one-off credits is less than the batch's
	// association count.
	ErrInsufficientCredits = errors.New("insufficient credits")
)
