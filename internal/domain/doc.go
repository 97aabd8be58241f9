// Package domain defines the core business types for the email verification
// batching engine: user batches, the global result cache, provider batches,
// credit ledgers, rate counters, and enrichment progress.
//
// Types in this package are pure value objects with no behavior, no database
// dependencies, and no HTTP concerns. They are the shared language between
// the API layer, the background workers (packer, lifecycle poller, result
// applier, sweeper, enrichment pipeline), and the store implementations.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
