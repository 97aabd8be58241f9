package userbatch

import "errors"

// Sentinel errors for the user-batch service layer.
var (
	ErrNotFound          = errors.New("user batch not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptySource       = errors.New("source file contains no usable email rows")
	ErrArchived          = errors.New("user batch is archived")
)
