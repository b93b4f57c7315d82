package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"kosera-ai-service/internal/domain"
)

func serve(e *echo.Echo, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if ip != "" {
		req.Header.Set(echo.HeaderXRealIP, ip)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 10)
	defer rl.Stop()

	e := echo.New()
	e.Use(rl.Middleware())
	e.POST("/vectorize", okHandler)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/vectorize", "").Code)
}

func TestRateLimiter_RejectsOverLimitWithRetryAfter(t *testing.T) {
	// 1 req/s, burst 1: second request should be rejected
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	e := echo.New()
	e.Use(rl.Middleware())
	e.POST("/vectorize", okHandler)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/vectorize", "").Code)
	rec := serve(e, http.MethodPost, "/vectorize", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_DifferentIPsGetSeparateLimits(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	e := echo.New()
	e.Use(rl.Middleware())
	e.POST("/vectorize", okHandler)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/vectorize", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/vectorize", "10.0.0.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(e, http.MethodPost, "/vectorize", "10.0.0.1").Code)
}

func TestReadinessGate(t *testing.T) {
	readiness := domain.NewReadiness(domain.ModelInfo{Name: "m", Dimension: 384})
	var gateErr error

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		gateErr = err
		_ = c.NoContent(http.StatusServiceUnavailable)
	}
	e.POST("/vectorize", okHandler, ReadinessGate(readiness))

	rec := serve(e, http.MethodPost, "/vectorize", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.ErrorIs(t, gateErr, domain.ErrNotReady)

	readiness.MarkReady()
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/vectorize", "").Code)
}

func newTracedEcho(t *testing.T) (*echo.Echo, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tp.Tracer("test").Start(c.Request().Context(), "request")
			defer span.End()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	e.Use(OTelStatusMiddleware())
	return e, recorder
}

func TestOTelStatusMiddleware_ServerErrorMarksSpan(t *testing.T) {
	e, recorder := newTracedEcho(t)
	e.POST("/vectorize", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	})

	serve(e, http.MethodPost, "/vectorize", "")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestOTelStatusMiddleware_ClientErrorLeavesUnset(t *testing.T) {
	e, recorder := newTracedEcho(t)
	e.POST("/vectorize", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, errors.New("bad").Error())
	})

	serve(e, http.MethodPost, "/vectorize", "")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
