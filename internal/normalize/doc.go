// Package normalize implements the email canonicalisation and validation
// rules used to key the global result cache (spec.md §4.1).
//
// Normalisation is intentionally narrow: lowercase, strip the plus-suffix.
// It never strips dots, since mail providers disagree on dot-equivalence.
package normalize
