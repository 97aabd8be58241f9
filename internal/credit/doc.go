// Package credit implements the credit ledger (spec.md §4.2): reservation
// checks ahead of a batch start, and atomic deduction across subscription
// and one-off credit pools once a batch's association count is known.
//
// The service layer contains the business rules; repository implementations
// live in internal/store/postgres and should never be imported here.
package credit
