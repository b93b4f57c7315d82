package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendHugot  = "hugot"
	BackendOllama = "ollama"
	BackendHash   = "hash"
)

type Config struct {
	Env             string
	Port            string
	ShutdownTimeout time.Duration

	Model     ModelConfig
	Ollama    OllamaConfig
	Inference InferenceConfig
	HTTP      HTTPConfig
}

// ModelConfig describes the single encoder loaded for the process lifetime.
type ModelConfig struct {
	Name        string
	Repo        string
	Dir         string
	OnnxFile    string
	Dimension   int
	Backend     string
	Normalize   bool
	LoadTimeout time.Duration
}

type OllamaConfig struct {
	URL     string
	Model   string
	Timeout int
}

type InferenceConfig struct {
	MaxBatchSize int
	Workers      int
	QueueSize    int
	CacheSize    int
}

type HTTPConfig struct {
	CORSAllowOrigins []string
	BodyLimit        string
	RateLimitRPS     float64
	RateLimitBurst   int
	// H2C serves HTTP/2 over cleartext for callers behind a mesh sidecar.
	H2C bool
}

// Load reads configuration from environment variables with defaults matching
// the production deployment.
func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8000"),
		Model: ModelConfig{
			Name:      getEnv("MODEL_NAME", "paraphrase-multilingual-MiniLM-L12-v2"),
			Repo:      getEnv("MODEL_REPO", "sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2"),
			Dir:       getEnvWithAlt("MODEL_DIR", "TRANSFORMERS_CACHE", "/app/models"),
			OnnxFile:  getEnv("MODEL_ONNX_FILE", "onnx/model.onnx"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 384),
			Backend:   strings.ToLower(getEnv("ENCODER_BACKEND", BackendHugot)),
			Normalize: getEnvBool("NORMALIZE_EMBEDDINGS", false),
		},
		Ollama: OllamaConfig{
			URL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:   getEnv("OLLAMA_MODEL", "paraphrase-multilingual"),
			Timeout: getEnvInt("OLLAMA_TIMEOUT", 30),
		},
		Inference: InferenceConfig{
			MaxBatchSize: getEnvInt("MAX_BATCH_SIZE", 100),
			Workers:      getEnvInt("INFERENCE_WORKERS", 1),
			QueueSize:    getEnvInt("INFERENCE_QUEUE_SIZE", 64),
			CacheSize:    getEnvInt("EMBEDDING_CACHE_SIZE", 2048),
		},
		HTTP: HTTPConfig{
			CORSAllowOrigins: splitList(getEnv("CORS_ALLOW_ORIGINS", "*")),
			BodyLimit:        getEnv("BODY_LIMIT", "2M"),
			RateLimitRPS:     getEnvFloat64("RATE_LIMIT_RPS", 0),
			RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 20),
			H2C:              getEnvBool("H2C_ENABLED", false),
		},
	}

	var err error
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Model.LoadTimeout, err = getEnvDuration("LOAD_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if c.Model.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive")
	}
	switch c.Model.Backend {
	case BackendHugot:
		if c.Model.Dir == "" {
			return fmt.Errorf("MODEL_DIR cannot be empty for the %s backend", BackendHugot)
		}
	case BackendOllama:
		if c.Ollama.URL == "" {
			return fmt.Errorf("OLLAMA_URL cannot be empty for the %s backend", BackendOllama)
		}
	case BackendHash:
	default:
		return fmt.Errorf("unknown ENCODER_BACKEND %q", c.Model.Backend)
	}
	if c.Inference.MaxBatchSize < 1 {
		return fmt.Errorf("MAX_BATCH_SIZE must be at least 1")
	}
	if c.Inference.Workers < 1 {
		return fmt.Errorf("INFERENCE_WORKERS must be at least 1")
	}
	if c.Inference.QueueSize < 0 {
		return fmt.Errorf("INFERENCE_QUEUE_SIZE cannot be negative")
	}
	if c.Inference.CacheSize < 0 {
		return fmt.Errorf("EMBEDDING_CACHE_SIZE cannot be negative")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS cannot be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
