package kafka

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProducerClosed     = errors.New("kafka producer is closed")
	ErrConsumerClosed     = errors.New("kafka consumer is closed")
	ErrInvalidMessage     = errors.New("invalid message")
	ErrEmptyKey           = errors.New("message key cannot be empty")
	ErrEmptyValue         = errors.New("message value cannot be empty")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeTransient
	ErrorTypePermanent
)

// BusError wraps processing failures with a retryability classification.
type BusError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *BusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusError) Unwrap() error {
	return e.Err
}

func NewTransientError(message string, err error) *BusError {
	return &BusError{Type: ErrorTypeTransient, Message: message, Err: err}
}

func NewPermanentError(message string, err error) *BusError {
	return &BusError{Type: ErrorTypePermanent, Message: message, Err: err}
}

var transientPatterns = []string{
	"connection refused",
	"timeout",
	"deadline exceeded",
	"no such host",
	"network is unreachable",
	"broken pipe",
	"connection reset",
	"i/o timeout",
	"temporary failure",
}

// ClassifyError decides whether a processing error is worth retrying.
// Unclassifiable errors are treated as permanent so they land in the DLQ
// instead of looping.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var busErr *BusError
	if errors.As(err, &busErr) {
		return busErr.Type
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return ErrorTypeTransient
		}
	}

	return ErrorTypePermanent
}

func ShouldRetry(err error, currentRetries, maxRetries int) bool {
	if err == nil || currentRetries >= maxRetries {
		return false
	}
	return ClassifyError(err) == ErrorTypeTransient
}
