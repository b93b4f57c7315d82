package di

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"kosera-ai-service/internal/adapter/embed_http"
	"kosera-ai-service/internal/adapter/encoder"
	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/infra/cache"
	"kosera-ai-service/internal/infra/config"
	"kosera-ai-service/internal/middleware"
	"kosera-ai-service/internal/usecase"
	"kosera-ai-service/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Readiness *domain.Readiness
	Handle    *worker.EncoderHandle
	Loader    domain.EncoderLoader

	EmbedUsecase usecase.EmbedUsecase
	Handler      *embed_http.Handler

	// RateLimiter is nil when RATE_LIMIT_RPS is 0.
	RateLimiter *middleware.RateLimiter
}

// NewApplicationComponents wires all dependencies from config. The encoder is
// not loaded here; callers run Handle.Load with Loader in the background.
func NewApplicationComponents(cfg *config.Config, log *slog.Logger) (*ApplicationComponents, error) {
	readiness := domain.NewReadiness(domain.ModelInfo{
		Name:      cfg.Model.Name,
		Dimension: cfg.Model.Dimension,
	})

	loader, err := encoder.NewLoader(encoder.Options{
		Backend:       cfg.Model.Backend,
		Name:          cfg.Model.Name,
		Repo:          cfg.Model.Repo,
		Dir:           cfg.Model.Dir,
		OnnxFile:      cfg.Model.OnnxFile,
		Dimension:     cfg.Model.Dimension,
		Normalize:     cfg.Model.Normalize,
		OllamaURL:     cfg.Ollama.URL,
		OllamaModel:   cfg.Ollama.Model,
		OllamaTimeout: time.Duration(cfg.Ollama.Timeout) * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build encoder loader: %w", err)
	}

	handle := worker.NewEncoderHandle(readiness, cfg.Inference.Workers, cfg.Inference.QueueSize, log)

	// A nil interface, not a typed nil, disables caching.
	var embeddingCache domain.EmbeddingCache
	if cfg.Inference.CacheSize > 0 {
		c, err := cache.NewEmbeddingCache(cfg.Inference.CacheSize)
		if err != nil {
			return nil, err
		}
		embeddingCache = c
	}

	embedUsecase := usecase.NewEmbedUsecase(
		readiness,
		usecase.NewRequestValidator(cfg.Inference.MaxBatchSize),
		handle,
		embeddingCache,
		log,
	)

	var rl *middleware.RateLimiter
	if cfg.HTTP.RateLimitRPS > 0 {
		rl = middleware.NewRateLimiter(rate.Limit(cfg.HTTP.RateLimitRPS), cfg.HTTP.RateLimitBurst)
	}

	return &ApplicationComponents{
		Readiness:    readiness,
		Handle:       handle,
		Loader:       loader,
		EmbedUsecase: embedUsecase,
		Handler:      embed_http.NewHandler(embedUsecase, readiness, log),
		RateLimiter:  rl,
	}, nil
}
