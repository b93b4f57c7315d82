package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kosera-ai-service/internal/domain"
	"kosera-ai-service/internal/infra/httpclient"
)

const (
	BackendHugot  = "hugot"
	BackendOllama = "ollama"
	BackendHash   = "hash"
)

// Options selects and configures an encoder backend.
type Options struct {
	Backend   string
	Name      string
	Repo      string
	Dir       string
	OnnxFile  string
	Dimension int
	Normalize bool

	OllamaURL     string
	OllamaModel   string
	OllamaTimeout time.Duration
}

// NewLoader returns the loader for the configured backend. Nothing is built
// until the loader runs.
func NewLoader(opts Options, logger *slog.Logger) (domain.EncoderLoader, error) {
	switch opts.Backend {
	case BackendHugot, "":
		return func(ctx context.Context) (domain.VectorEncoder, error) {
			return NewHugotEncoder(ctx, HugotOptions{
				Name:      opts.Name,
				Repo:      opts.Repo,
				Dir:       opts.Dir,
				OnnxFile:  opts.OnnxFile,
				Normalize: opts.Normalize,
			})
		}, nil
	case BackendOllama:
		return func(context.Context) (domain.VectorEncoder, error) {
			client := httpclient.New(httpclient.DefaultOptions(opts.OllamaTimeout))
			return NewOllamaEncoder(opts.OllamaURL, opts.OllamaModel, client, logger), nil
		}, nil
	case BackendHash:
		return func(context.Context) (domain.VectorEncoder, error) {
			logger.Warn("hash_encoder_selected", slog.String("note", "vectors carry no semantics"))
			return NewHashEncoder(opts.Dimension), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown encoder backend: %q", opts.Backend)
	}
}
