package embedder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	cache     *VectorCache
}

// OpenAIOptions configures an OpenAIProvider. Zero values select defaults.
type OpenAIOptions struct {
	APIKey    string
	Model     string
	BaseURL   string // Alternate OpenAI-compatible endpoint, e.g. http://host/v1
	Dimension int
	Timeout   time.Duration
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(opts OpenAIOptions, cache *VectorCache) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key not set", ErrNoProviderEnabled)
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = OpenAIDimension
		if opts.Model == "text-embedding-3-large" {
			opts.Dimension = 3072
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(config),
		model:     opts.Model,
		dimension: opts.Dimension,
		cache:     cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := checkText(req.Text); err != nil {
		return nil, err
	}

	if emb, ok := o.cache.Get(TextKey(o.model, req.Text)); ok {
		return emb, nil
	}

	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := checkBatch(req.Texts); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	embeddings, err := o.callAPI(ctx, req.Texts)
	if err != nil {
		return nil, err
	}

	for i, emb := range embeddings {
		emb.Key = TextKey(o.model, req.Texts[i])
		o.cache.Put(emb.Key, emb)
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      o.model,
	}, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", ErrProviderFailed, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: openai returned %d embeddings for %d texts", ErrProviderFailed, len(resp.Data), len(texts))
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai returned index %d", ErrProviderFailed, data.Index)
		}

		vector := make([]float32, len(data.Embedding))
		for i := range data.Embedding {
			vector[i] = float32(data.Embedding[i])
		}
		if err := checkDimension(ProviderOpenAI, o.dimension, vector); err != nil {
			return nil, err
		}

		embeddings[data.Index] = &Embedding{
			Vector:    NormalizeVector(vector),
			Dimension: len(vector),
			Provider:  ProviderOpenAI,
			Model:     o.model,
		}
	}

	return embeddings, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
