package embed_http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/infra/logger"
	"kosera-ai-service/internal/infra/metrics"
	appmiddleware "kosera-ai-service/internal/middleware"
	"kosera-ai-service/internal/usecase"
)

const testDim = 384

type stubEmbedder struct {
	calls atomic.Int32
	err   error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

type testServer struct {
	e         *echo.Echo
	embedder  *stubEmbedder
	readiness *domain.Readiness
	logs      *bytes.Buffer
}

func newTestServer(t *testing.T, ready bool, embedMiddleware ...echo.MiddlewareFunc) *testServer {
	t.Helper()
	logs := new(bytes.Buffer)
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(logs, nil)))
	readiness := domain.NewReadiness(domain.ModelInfo{Name: "paraphrase-multilingual-MiniLM-L12-v2", Dimension: testDim})
	if ready {
		readiness.MarkReady()
	}
	embedder := &stubEmbedder{}
	uc := usecase.NewEmbedUsecase(readiness, usecase.NewRequestValidator(100), embedder, nil, log)
	h := NewHandler(uc, readiness, log)

	e := echo.New()
	e.HTTPErrorHandler = NewErrorHandler(log)
	e.Use(middleware.RequestID())
	RegisterRoutes(e, h, embedMiddleware...)
	return &testServer{e: e, embedder: embedder, readiness: readiness, logs: logs}
}

// logEntry returns the first JSON log line with the given message.
func (s *testServer) logEntry(t *testing.T, msg string) map[string]any {
	t.Helper()
	for _, line := range strings.Split(strings.TrimSpace(s.logs.String()), "\n") {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil && entry["msg"] == msg {
			return entry
		}
	}
	t.Fatalf("no %q log line in:\n%s", msg, s.logs.String())
	return nil
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	return body
}

func TestHealth_AlwaysOK(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/", "/health"} {
		rec := s.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Ready)
		assert.Equal(t, "loading", body.State)
		assert.Equal(t, testDim, body.Dimension)
		assert.Equal(t, "paraphrase-multilingual-MiniLM-L12-v2", body.Model)
	}

	s.readiness.MarkReady()
	rec := s.do(http.MethodGet, "/health", "")
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Ready)
	assert.Equal(t, "AI Service is running", body.Status)
}

func TestHealth_FailedStillOK(t *testing.T) {
	s := newTestServer(t, false)
	s.readiness.MarkFailed(errors.New("weights missing"))

	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"failed"`)
	assert.NotContains(t, rec.Body.String(), "weights missing")
}

func TestReadyz(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	s.readiness.MarkReady()
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "").Code)
}

func TestVectorizeText_Success(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(http.MethodPost, "/vectorize", `{"text":"Kos nyaman dekat kampus"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body TextResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, testDim, body.Dimension)
	assert.Len(t, body.Vector, testDim)
}

func TestVectorizeText_EmptyInput(t *testing.T) {
	s := newTestServer(t, true)

	for _, payload := range []string{`{"text":""}`, `{"text":"   "}`, `{}`} {
		rec := s.do(http.MethodPost, "/vectorize", payload)
		require.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, codeEmptyInput, decodeError(t, rec).Error)
	}
	assert.Zero(t, s.embedder.calls.Load())
}

func TestVectorizeText_MalformedJSON(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(http.MethodPost, "/vectorize", `{"text":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, codeInvalidRequest, decodeError(t, rec).Error)
}

func TestVectorizeBatch_Success(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(http.MethodPost, "/vectorize/batch", `{"texts":["Kos murah","Kos dekat kampus"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Vectors, 2)
	assert.Equal(t, float32(len("Kos murah")), body.Vectors[0][0])
	assert.Equal(t, float32(len("Kos dekat kampus")), body.Vectors[1][0])
}

func TestVectorizeBatch_ValidationErrors(t *testing.T) {
	s := newTestServer(t, true)

	oversize := make([]string, 101)
	for i := range oversize {
		oversize[i] = fmt.Sprintf("%q", "Kos murah")
	}

	tests := []struct {
		name   string
		body   string
		code   string
		detail string
	}{
		{name: "empty element", body: `{"texts":["Kos murah",""]}`, code: codeEmptyElement, detail: "index 1"},
		{name: "empty batch", body: `{"texts":[]}`, code: codeEmptyBatch},
		{name: "missing texts", body: `{}`, code: codeEmptyBatch},
		{name: "too large", body: `{"texts":[` + strings.Join(oversize, ",") + `]}`, code: codeBatchTooLarge, detail: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/vectorize/batch", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error)
			assert.Contains(t, body.Detail, tt.detail)
			assert.NotContains(t, rec.Body.String(), "vectors")
		})
	}
	assert.Zero(t, s.embedder.calls.Load())
}

func TestVectorize_NotReady(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(http.MethodPost, "/vectorize", `{"text":"Kos murah"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, codeNotReady, decodeError(t, rec).Error)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Invalid payloads still get 503 while loading.
	rec = s.do(http.MethodPost, "/vectorize/batch", `{"texts":[]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Zero(t, s.embedder.calls.Load())
}

func TestVectorize_InternalErrorIsOpaque(t *testing.T) {
	s := newTestServer(t, true)
	s.embedder.err = fmt.Errorf("%w: onnx session at /app/models crashed", domain.ErrEncoderFailure)

	rec := s.do(http.MethodPost, "/vectorize", `{"text":"Kos murah"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, codeInternal, body.Error)
	assert.NotContains(t, rec.Body.String(), "onnx")
	assert.NotContains(t, rec.Body.String(), "/app/models")
}

func TestVectorize_FailureLogCarriesRequestFields(t *testing.T) {
	s := newTestServer(t, true)
	s.embedder.err = fmt.Errorf("%w: session crashed", domain.ErrEncoderFailure)

	rec := s.do(http.MethodPost, "/vectorize/batch", `{"texts":["Kos murah","Kos dekat kampus"]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	requestID := rec.Header().Get(echo.HeaderXRequestID)
	require.NotEmpty(t, requestID)

	entry := s.logEntry(t, "embed_request_failed")
	assert.Equal(t, requestID, entry["request_id"])
	assert.Equal(t, float64(2), entry["batch_size"])
	assert.Equal(t, "/vectorize/batch", entry["path"])
}

func TestRegisterRoutes_RateLimitRunsBeforeReadinessGate(t *testing.T) {
	limiter := appmiddleware.NewRateLimiter(rate.Limit(0.01), 1)
	t.Cleanup(limiter.Stop)
	s := newTestServer(t, false, limiter.Middleware())

	unavailable := metrics.RequestsTotal.WithLabelValues("vectorize", "unavailable")
	limited := metrics.RequestsTotal.WithLabelValues("vectorize", "rate_limited")
	unavailableBefore := testutil.ToFloat64(unavailable)
	limitedBefore := testutil.ToFloat64(limited)

	// The single token is spent on a request the gate then rejects.
	rec := s.do(http.MethodPost, "/vectorize", `{"text":"Kos murah"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(http.MethodPost, "/vectorize", `{"text":"Kos murah"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, codeRateLimited, decodeError(t, rec).Error)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, unavailableBefore+1, testutil.ToFloat64(unavailable))
	assert.Equal(t, limitedBefore+1, testutil.ToFloat64(limited))
	assert.Zero(t, s.embedder.calls.Load())
}

func TestRegisterRoutes_RecordsOutcomes(t *testing.T) {
	s := newTestServer(t, true)

	success := metrics.RequestsTotal.WithLabelValues("vectorize_batch", "success")
	invalid := metrics.RequestsTotal.WithLabelValues("vectorize_batch", "invalid")
	failed := metrics.RequestsTotal.WithLabelValues("vectorize_batch", "error")
	successBefore := testutil.ToFloat64(success)
	invalidBefore := testutil.ToFloat64(invalid)
	failedBefore := testutil.ToFloat64(failed)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/vectorize/batch", `{"texts":["Kos murah"]}`).Code)
	require.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/vectorize/batch", `{"texts":[]}`).Code)
	s.embedder.err = domain.ErrEncoderFailure
	require.Equal(t, http.StatusInternalServerError, s.do(http.MethodPost, "/vectorize/batch", `{"texts":["Kos murah"]}`).Code)

	assert.Equal(t, successBefore+1, testutil.ToFloat64(success))
	assert.Equal(t, invalidBefore+1, testutil.ToFloat64(invalid))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, codeNotFound, decodeError(t, rec).Error)
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&domain.ValidationError{Err: domain.ErrEmptyInput}, http.StatusBadRequest, codeEmptyInput},
		{&domain.ValidationError{Err: domain.ErrBatchTooLarge, Size: 101, Limit: 100}, http.StatusBadRequest, codeBatchTooLarge},
		{domain.ErrNotReady, http.StatusServiceUnavailable, codeNotReady},
		{domain.ErrLoadFailed, http.StatusServiceUnavailable, codeNotReady},
		{domain.ErrEncoderClosed, http.StatusServiceUnavailable, codeNotReady},
		{domain.ErrMisalignedResult, http.StatusInternalServerError, codeInternal},
		{errors.New("anything else"), http.StatusInternalServerError, codeInternal},
	}

	for _, tt := range tests {
		he := mapDomainError(tt.err)
		assert.Equal(t, tt.status, he.Code, tt.err.Error())
		body, ok := he.Message.(ErrorResponse)
		require.True(t, ok)
		assert.Equal(t, tt.code, body.Error)
	}
}
