// Package enrichment implements the export pipeline (C8, spec.md §4.8):
// joining a user batch's source file against the cached GlobalResult for
// each address and writing partitioned, translated-outcome export objects.
//
// Grounded on internal/worker's background-loop shape for progress
// reporting and internal/worker/list_upload.go's streaming-row idiom,
// generalized from subscriber import to result-joined export.
package enrichment
