package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrStatusChanged means a guarded status update matched no document: the
	// reservation moved to another status between read and write.
	ErrStatusChanged = errors.New("reservation status changed concurrently")
)
