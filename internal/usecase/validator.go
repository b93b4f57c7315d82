package usecase

import (
	"strings"

	"kosera-ai-service/internal/domain"
)

const DefaultMaxBatchSize = 100

// RequestValidator enforces input contracts before any inference work.
// Texts are only trimmed for the emptiness check; callers keep the originals.
type RequestValidator struct {
	maxBatchSize int
}

func NewRequestValidator(maxBatchSize int) *RequestValidator {
	if maxBatchSize < 1 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &RequestValidator{maxBatchSize: maxBatchSize}
}

func (v *RequestValidator) MaxBatchSize() int {
	return v.maxBatchSize
}

func (v *RequestValidator) ValidateText(text string) error {
	if isBlank(text) {
		return &domain.ValidationError{Err: domain.ErrEmptyInput}
	}
	return nil
}

// ValidateBatch checks emptiness of the batch, then of each element (first
// offending index wins), then the size limit.
func (v *RequestValidator) ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return &domain.ValidationError{Err: domain.ErrEmptyBatch}
	}
	for i, t := range texts {
		if isBlank(t) {
			return &domain.ValidationError{Err: domain.ErrEmptyElementInBatch, Index: i}
		}
	}
	if len(texts) > v.maxBatchSize {
		return &domain.ValidationError{
			Err:   domain.ErrBatchTooLarge,
			Size:  len(texts),
			Limit: v.maxBatchSize,
		}
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
