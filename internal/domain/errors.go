package domain

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	ErrEmptyInput          = errors.New("text cannot be empty or whitespace only")
	ErrEmptyBatch          = errors.New("texts must contain at least one item")
	ErrEmptyElementInBatch = errors.New("batch item is empty")
	ErrBatchTooLarge       = errors.New("batch exceeds maximum size")
)

// Availability errors.
var (
	ErrNotReady      = errors.New("model not loaded")
	ErrLoadFailed    = errors.New("model failed to load")
	ErrEncoderClosed = errors.New("encoder is shutting down")
)

// Inference errors.
var (
	ErrEncoderFailure     = errors.New("embedding generation failed")
	ErrMisalignedResult   = errors.New("encoder returned misaligned result")
	ErrDimensionMismatch  = errors.New("encoder returned unexpected dimension")
	ErrAlreadyInitialized = errors.New("encoder already initialized")
)

// ValidationError classifies a rejected request. Err is always one of the
// validation sentinels above so callers can match with errors.Is.
type ValidationError struct {
	Err   error
	Index int
	Size  int
	Limit int
}

func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrEmptyElementInBatch):
		return fmt.Sprintf("Item at index %d is empty. All batch items must be valid non-empty text.", e.Index)
	case errors.Is(e.Err, ErrBatchTooLarge):
		return fmt.Sprintf("Batch size %d exceeds the maximum of %d texts per request.", e.Size, e.Limit)
	case errors.Is(e.Err, ErrEmptyInput):
		return "Text cannot be empty or whitespace only"
	case errors.Is(e.Err, ErrEmptyBatch):
		return "Texts must contain at least one item"
	default:
		return e.Err.Error()
	}
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
