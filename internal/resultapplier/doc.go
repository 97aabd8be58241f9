// Package resultapplier implements the result-application transaction
// (spec.md §4.6): marking a provider batch completed before applying its
// results so redelivery is idempotent, upserting GlobalResult rows,
// marking associations complete, and firing batch completion (§4.7).
package resultapplier
