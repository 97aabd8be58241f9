// Package rategovernor implements the sliding 60-second rate gate in front
// of the verification provider (spec.md §4.3). Redis holds the fast atomic
// counter; every successful grant is also persisted as a RateCounter row
// through the Repository for the audit trail spec.md §3 requires.
package rategovernor
