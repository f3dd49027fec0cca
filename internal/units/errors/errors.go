package errors

import "errors"

var (
	ErrNotFound = errors.New("unit not found")

	ErrInvalidID = errors.New("invalid unit ID format")
)
