// Package api exposes the unauthenticated HTTP surface for submitting and
// monitoring verification batches (spec.md §1 explicitly places auth and
// multi-tenant isolation out of scope for this core). Grounded on the
// teacher's chi + cors router setup (internal/api/routes.go,
// internal/api/health_handler.go) and response-helper idiom
// (internal/api/handlers.go), narrowed to the operations SPEC_FULL.md's
// batch lifecycle actually needs.
package api
