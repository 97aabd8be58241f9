// Package sweeper implements the stuck-batch sweep (spec.md §4.9): for
// each check type, it finds processing user batches whose associations
// are all complete and transitions them to completed, closing the gap
// left when a result application crashed before firing the completion
// hook.
package sweeper
