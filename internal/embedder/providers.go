package embedder

import (
	"fmt"
	"math"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
	ProviderNone   = "none"

	// Default models
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "hashing-bow-v1"

	// Dimensions
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	DefaultOllamaURL = "http://localhost:11434"

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}

	return result
}

// checkDimension rejects vectors that do not match the configured dimension
func checkDimension(provider string, want int, got []float32) error {
	if want > 0 && len(got) != want {
		return fmt.Errorf("%w: %s returned %d values, expected %d", ErrDimensionMismatch, provider, len(got), want)
	}
	return nil
}
