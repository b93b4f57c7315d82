package embed_http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"kosera-ai-service/internal/domain"
)

// retryAfterSeconds is advertised on 503 responses.
const retryAfterSeconds = 5

const (
	statusSuccess = "success"
	statusError   = "error"
)

const (
	codeEmptyInput     = "empty_input"
	codeEmptyBatch     = "empty_batch"
	codeEmptyElement   = "empty_element_in_batch"
	codeBatchTooLarge  = "batch_too_large"
	codeNotReady       = "not_ready"
	codeInternal       = "internal_error"
	codeInvalidRequest = "invalid_request"
	codeRateLimited    = "rate_limited"
	codeNotFound       = "not_found"
)

type TextRequest struct {
	Text string `json:"text"`
}

type BatchRequest struct {
	Texts []string `json:"texts"`
}

type TextResponse struct {
	Status    string    `json:"status"`
	Vector    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
}

type BatchResponse struct {
	Status    string      `json:"status"`
	Vectors   [][]float32 `json:"vectors"`
	Count     int         `json:"count"`
	Dimension int         `json:"dimension"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Ready     bool   `json:"ready"`
	State     string `json:"state"`
}

type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// mapDomainError converts a domain error into an echo.HTTPError whose message
// is the ErrorResponse body. Internal failures are opaque to the caller.
func mapDomainError(err error) *echo.HTTPError {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return newErrorResponse(http.StatusBadRequest, validationCode(ve), ve.Error())
	}

	switch {
	case errors.Is(err, domain.ErrNotReady):
		return newErrorResponse(http.StatusServiceUnavailable, codeNotReady,
			"Model is still loading. Please retry shortly.")

	case errors.Is(err, domain.ErrLoadFailed),
		errors.Is(err, domain.ErrEncoderClosed):
		return newErrorResponse(http.StatusServiceUnavailable, codeNotReady,
			"Model is not available.")

	default:
		return newErrorResponse(http.StatusInternalServerError, codeInternal,
			"Failed to generate embedding.")
	}
}

func validationCode(ve *domain.ValidationError) string {
	switch {
	case errors.Is(ve, domain.ErrEmptyInput):
		return codeEmptyInput
	case errors.Is(ve, domain.ErrEmptyBatch):
		return codeEmptyBatch
	case errors.Is(ve, domain.ErrEmptyElementInBatch):
		return codeEmptyElement
	case errors.Is(ve, domain.ErrBatchTooLarge):
		return codeBatchTooLarge
	default:
		return codeInvalidRequest
	}
}

func newErrorResponse(status int, code, detail string) *echo.HTTPError {
	return echo.NewHTTPError(status, ErrorResponse{
		Status: statusError,
		Error:  code,
		Detail: detail,
	})
}

// codeForStatus names errors raised outside the handlers (routing, body
// limit, rate limit).
func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return codeNotFound
	case http.StatusTooManyRequests:
		return codeRateLimited
	case http.StatusServiceUnavailable:
		return codeNotReady
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return codeInvalidRequest
	default:
		if status >= 500 {
			return codeInternal
		}
		return codeInvalidRequest
	}
}

func setRetryAfter(c echo.Context, status int) {
	if status == http.StatusServiceUnavailable && c.Response().Header().Get("Retry-After") == "" {
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
}
