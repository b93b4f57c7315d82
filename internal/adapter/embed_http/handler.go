package embed_http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/infra/logger"
	"kosera-ai-service/internal/usecase"
)

type Handler struct {
	embedUsecase usecase.EmbedUsecase
	readiness    *domain.Readiness
	logger       *slog.Logger
}

// NewHandler builds the HTTP handlers. Request-scoped fields reach log lines
// when log is built on logger.ContextHandler.
func NewHandler(
	embedUsecase usecase.EmbedUsecase,
	readiness *domain.Readiness,
	log *slog.Logger,
) *Handler {
	return &Handler{
		embedUsecase: embedUsecase,
		readiness:    readiness,
		logger:       log,
	}
}

// Health reports service metadata and model readiness. It always answers 200
// so liveness probes never restart a process that is still loading.
// (GET /, GET /health)
func (h *Handler) Health(c echo.Context) error {
	info := h.readiness.Model()
	state := h.readiness.State()

	status := "AI Service is running"
	switch state {
	case domain.StateLoading:
		status = "AI Service is running; model is loading"
	case domain.StateFailed:
		status = "AI Service is running; model failed to load"
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Model:     info.Name,
		Dimension: info.Dimension,
		Ready:     state == domain.StateReady,
		State:     state.String(),
	})
}

// Live is a bare liveness probe.
// (GET /healthz)
func (h *Handler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready answers 503 until the encoder is loaded.
// (GET /readyz)
func (h *Handler) Ready(c echo.Context) error {
	if err := h.readiness.Err(); err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// Embed a single text
// (POST /vectorize)
func (h *Handler) VectorizeText(c echo.Context) error {
	var req TextRequest
	if err := c.Bind(&req); err != nil {
		return newErrorResponse(http.StatusBadRequest, codeInvalidRequest, "Request body must be JSON of the form {\"text\": \"...\"}")
	}

	ctx := h.requestContext(c)
	out, err := h.embedUsecase.EmbedText(ctx, req.Text)
	if err != nil {
		return h.fail(ctx, c, err)
	}

	return c.JSON(http.StatusOK, TextResponse{
		Status:    statusSuccess,
		Vector:    out.Vector,
		Dimension: out.Dimension,
	})
}

// Embed a batch of texts, aligned by position
// (POST /vectorize/batch)
func (h *Handler) VectorizeBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return newErrorResponse(http.StatusBadRequest, codeInvalidRequest, "Request body must be JSON of the form {\"texts\": [\"...\"]}")
	}

	ctx := logger.WithBatchSize(h.requestContext(c), len(req.Texts))
	out, err := h.embedUsecase.EmbedBatch(ctx, req.Texts)
	if err != nil {
		return h.fail(ctx, c, err)
	}

	return c.JSON(http.StatusOK, BatchResponse{
		Status:    statusSuccess,
		Vectors:   out.Vectors,
		Count:     out.Count,
		Dimension: out.Dimension,
	})
}

func (h *Handler) requestContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	return ctx
}

func (h *Handler) fail(ctx context.Context, c echo.Context, err error) error {
	he := mapDomainError(err)
	if he.Code >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "embed_request_failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return he
}
