package middleware

import (
	"github.com/labstack/echo/v4"

	"kosera-ai-service/internal/domain"
)

// ReadinessGate rejects requests before the body is read while the encoder is
// loading or failed. The returned domain error is rendered by the HTTP error
// handler.
func ReadinessGate(readiness *domain.Readiness) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := readiness.Err(); err != nil {
				return err
			}
			return next(c)
		}
	}
}
