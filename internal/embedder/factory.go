package embedder

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider          string // openai, ollama, local or none
	Model             string
	APIKey            string
	BaseURL           string
	Dimension         int
	CacheSize         int
	RequestsPerMinute int
	Timeout           time.Duration
}

// New creates an embedder with explicit configuration. Remote providers are
// wrapped in a Guard. Provider "none" (or empty) returns ErrNoProviderEnabled.
func New(cfg Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cache := NewVectorCache(cfg.CacheSize)

	guard := GuardOptions{
		RequestsPerMinute: cfg.RequestsPerMinute,
		Logger:            logger,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(OpenAIOptions{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}, cache)
		if err != nil {
			return nil, err
		}
		return NewGuard(p, guard), nil
	case ProviderOllama:
		p, err := NewOllamaProvider(OllamaOptions{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		}, cache)
		if err != nil {
			return nil, err
		}
		return NewGuard(p, guard), nil
	case ProviderLocal:
		return NewLocalProvider(cfg.Dimension, cache)
	case "", ProviderNone, "off", "disabled":
		return nil, fmt.Errorf("%w: provider %q", ErrNoProviderEnabled, cfg.Provider)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
