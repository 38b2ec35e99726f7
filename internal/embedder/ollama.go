package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider implements Embedder against a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *VectorCache
}

// OllamaOptions configures an OllamaProvider. Zero values select defaults.
type OllamaOptions struct {
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewOllamaProvider creates a new Ollama embedder
func NewOllamaProvider(opts OllamaOptions, cache *VectorCache) (*OllamaProvider, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOllamaURL
	}
	if opts.Model == "" {
		opts.Model = DefaultOllamaModel
	}
	if opts.Dimension <= 0 {
		opts.Dimension = OllamaDimension
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &OllamaProvider{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		model:      opts.Model,
		dimension:  opts.Dimension,
		httpClient: &http.Client{Timeout: opts.Timeout},
		cache:      cache,
	}, nil
}

func (p *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := checkText(req.Text); err != nil {
		return nil, err
	}

	key := TextKey(p.model, req.Text)
	if emb, ok := p.cache.Get(key); ok {
		return emb, nil
	}

	vector, err := p.callAPI(ctx, req.Text)
	if err != nil {
		return nil, err
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderOllama,
		Model:     p.model,
		Key:       key,
	}
	p.cache.Put(key, emb)
	return emb, nil
}

// GenerateBatch calls the server once per text; the embeddings endpoint takes a single prompt
func (p *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := checkBatch(req.Texts); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOllama,
		Model:      p.model,
	}, nil
}

func (p *OllamaProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"model":  p.model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama: %v", ErrProviderFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: ollama error %d: %s", ErrProviderFailed, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var apiResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode ollama response: %v", ErrProviderFailed, err)
	}

	vector := make([]float32, len(apiResp.Embedding))
	for i, v := range apiResp.Embedding {
		vector[i] = float32(v)
	}
	if err := checkDimension(ProviderOllama, p.dimension, vector); err != nil {
		return nil, err
	}

	return NormalizeVector(vector), nil
}

func (p *OllamaProvider) Dimension() int {
	return p.dimension
}

func (p *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (p *OllamaProvider) Model() string {
	return p.model
}

func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
