package embed_http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kosera-ai-service/internal/infra/metrics"
	appmiddleware "kosera-ai-service/internal/middleware"
)

// RegisterRoutes mounts the probe, metrics and embed routes. embedMiddleware
// runs on the embed routes ahead of the readiness gate.
func RegisterRoutes(e *echo.Echo, h *Handler, embedMiddleware ...echo.MiddlewareFunc) {
	e.GET("/", h.Health)
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/vectorize", h.VectorizeText, embedChain("vectorize", h, embedMiddleware)...)
	e.POST("/vectorize/batch", h.VectorizeBatch, embedChain("vectorize_batch", h, embedMiddleware)...)
}

func embedChain(endpoint string, h *Handler, extra []echo.MiddlewareFunc) []echo.MiddlewareFunc {
	chain := make([]echo.MiddlewareFunc, 0, len(extra)+2)
	chain = append(chain, recordOutcome(endpoint))
	chain = append(chain, extra...)
	return append(chain, appmiddleware.ReadinessGate(h.readiness))
}

func recordOutcome(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			status := c.Response().Status
			if err != nil {
				status = statusOf(err)
			}
			metrics.RecordRequest(endpoint, outcomeFor(status))
			return err
		}
	}
}

func statusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return mapDomainError(err).Code
}

func outcomeFor(status int) string {
	switch {
	case status < 400:
		return "success"
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status < 500:
		return "invalid"
	default:
		return "error"
	}
}

// NewErrorHandler renders every error as an ErrorResponse. Domain errors that
// escape middleware are mapped here; 5xx details never reach the caller.
func NewErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = mapDomainError(err)
			if he.Code >= http.StatusInternalServerError {
				logger.ErrorContext(c.Request().Context(), "unhandled_error",
					slog.String("path", c.Path()),
					slog.String("error", err.Error()),
				)
			}
		}

		body, ok := he.Message.(ErrorResponse)
		if !ok {
			detail := http.StatusText(he.Code)
			if msg, isString := he.Message.(string); isString && he.Code < http.StatusInternalServerError {
				detail = msg
			}
			body = ErrorResponse{Status: statusError, Error: codeForStatus(he.Code), Detail: detail}
		}

		setRetryAfter(c, he.Code)

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(he.Code)
		} else {
			writeErr = c.JSON(he.Code, body)
		}
		if writeErr != nil {
			logger.ErrorContext(c.Request().Context(), "error_response_write_failed",
				slog.String("error", writeErr.Error()),
			)
		}
	}
}
