// Package userbatch implements submission, pause/resume, and status-read
// operations for user batches (spec.md §3, §4.7). It owns batch creation
// from an uploaded source file and the credit reservation/deduction that
// gates it, but never talks to Postgres directly — see Repository.
package userbatch
