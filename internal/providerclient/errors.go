package providerclient

import "errors"

// Sentinel errors surfaced by the provider client.
var (
	// ErrPaymentRequired is returned for a 402-class response. Callers
	// must dead-letter the provider batch and never retry (spec.md §7).
	ErrPaymentRequired = errors.New("provider: payment required")
	// ErrRateLimited is returned when the provider itself reports 429
	// after httpretry's retries are exhausted.
	ErrRateLimited = errors.New("provider: rate limited")
	// ErrServerError covers exhausted 5xx retries.
	ErrServerError = errors.New("provider: server error")
)
