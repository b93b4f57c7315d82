package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/infra/logger"
	"kosera-ai-service/internal/infra/metrics"
)

type EmbedTextOutput struct {
	Vector    []float32
	Dimension int
}

type EmbedBatchOutput struct {
	Vectors   [][]float32
	Count     int
	Dimension int
}

type EmbedUsecase interface {
	// EmbedText returns the vector for a single text.
	EmbedText(ctx context.Context, text string) (*EmbedTextOutput, error)
	// EmbedBatch returns one vector per text in input order. Any failure fails
	// the whole batch.
	EmbedBatch(ctx context.Context, texts []string) (*EmbedBatchOutput, error)
}

type embedUsecase struct {
	readiness *domain.Readiness
	validator *RequestValidator
	embedder  domain.Embedder
	cache     domain.EmbeddingCache
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewEmbedUsecase wires the orchestrator. cache may be nil.
func NewEmbedUsecase(
	readiness *domain.Readiness,
	validator *RequestValidator,
	embedder domain.Embedder,
	cache domain.EmbeddingCache,
	logger *slog.Logger,
) EmbedUsecase {
	return &embedUsecase{
		readiness: readiness,
		validator: validator,
		embedder:  embedder,
		cache:     cache,
		logger:    logger,
		tracer:    otel.Tracer("kosera-ai-service/usecase"),
	}
}

func (u *embedUsecase) EmbedText(ctx context.Context, text string) (*EmbedTextOutput, error) {
	ctx, span := u.tracer.Start(ctx, "EmbedText")
	defer span.End()
	tagRequest(ctx, span)

	// Unavailability is reported before validation.
	if err := u.readiness.Err(); err != nil {
		return nil, err
	}
	if err := u.validator.ValidateText(text); err != nil {
		return nil, err
	}

	vectors, err := u.embed(ctx, []string{text})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, err
	}

	return &EmbedTextOutput{
		Vector:    vectors[0],
		Dimension: u.readiness.Model().Dimension,
	}, nil
}

func (u *embedUsecase) EmbedBatch(ctx context.Context, texts []string) (*EmbedBatchOutput, error) {
	ctx, span := u.tracer.Start(ctx, "EmbedBatch",
		trace.WithAttributes(attribute.Int("embedding.batch_size", len(texts))),
	)
	defer span.End()
	tagRequest(ctx, span)

	if err := u.readiness.Err(); err != nil {
		return nil, err
	}
	if err := u.validator.ValidateBatch(texts); err != nil {
		return nil, err
	}

	vectors, err := u.embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		return nil, err
	}

	return &EmbedBatchOutput{
		Vectors:   vectors,
		Count:     len(vectors),
		Dimension: u.readiness.Model().Dimension,
	}, nil
}

func tagRequest(ctx context.Context, span trace.Span) {
	if id := logger.RequestID(ctx); id != "" {
		span.SetAttributes(attribute.String("http.request_id", id))
	}
}

// embed resolves cached texts, sends each distinct miss to the encoder once,
// and fans results back out to their original positions.
func (u *embedUsecase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	positions := make(map[string][]int)
	var misses []string
	hits := 0

	for i, t := range texts {
		if u.cache != nil {
			if v, ok := u.cache.Get(t); ok {
				results[i] = v
				hits++
				continue
			}
		}
		if _, seen := positions[t]; !seen {
			misses = append(misses, t)
		}
		positions[t] = append(positions[t], i)
	}
	if u.cache != nil {
		metrics.RecordCacheHits(hits, len(texts)-hits)
	}

	if len(misses) == 0 {
		return results, nil
	}

	vectors, err := u.embedder.Embed(ctx, misses)
	if err != nil {
		return nil, err
	}
	if err := u.checkAlignment(misses, vectors); err != nil {
		u.logger.ErrorContext(ctx, "encoder_result_rejected",
			slog.Int("requested", len(misses)),
			slog.Int("returned", len(vectors)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	for i, t := range misses {
		for j, pos := range positions[t] {
			if j == 0 {
				results[pos] = vectors[i]
				continue
			}
			dup := make([]float32, len(vectors[i]))
			copy(dup, vectors[i])
			results[pos] = dup
		}
		if u.cache != nil {
			u.cache.Add(t, vectors[i])
		}
	}

	return results, nil
}

func (u *embedUsecase) checkAlignment(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("got %d vectors for %d texts: %w", len(vectors), len(texts), domain.ErrMisalignedResult)
	}
	dim := u.readiness.Model().Dimension
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), dim, domain.ErrDimensionMismatch)
		}
	}
	return nil
}
