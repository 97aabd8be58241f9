// Package notify dispatches the batch CompletionHook notification (spec.md
// §4.7, §6) over SQS, fire-and-forget, grounded on
// internal/tracking.Publisher's Publish pattern.
package notify
