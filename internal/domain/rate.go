package domain

import "time"

// RequestKind enumerates the provider API operations subject to rate
// governance (spec.md §6).
type RequestKind string

const (
	RequestCreateBatch     RequestKind = "create_batch"
	RequestCheckStatus     RequestKind = "check_status"
	RequestDownloadResults RequestKind = "download_results"
)

// RateCounter is one audit row recorded each time the rate governor grants
// a request. Rows are aggregated over a 60-second sliding window; no
// compaction is required for correctness (spec.md §4.3).
type RateCounter struct {
	CheckType      CheckType
	RequestKind    RequestKind
	RequestCount   int
	WindowStart    time.Time
}
