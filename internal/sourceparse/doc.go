// Package sourceparse streams rows out of an uploaded source file (CSV or
// XLSX), used both to harvest email addresses at submission time and to
// drive the enrichment pipeline (spec.md §4.8 step 3). CSV is read row by
// row and never buffered in full; XLSX is buffered and converted to rows
// up front, per spec.md's explicit exception for that format.
package sourceparse
