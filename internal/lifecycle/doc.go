// Package lifecycle drives the provider-batch state machine (spec.md
// §4.5): polling pending/processing batches, advancing progress, handing
// completions to the result applier, and failing batches on provider
// error or timeout.
package lifecycle
