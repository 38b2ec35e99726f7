package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalProvider is an offline embedder based on feature hashing. Each
// lowercased word and adjacent word pair is hashed into a signed bucket and
// the result is L2-normalized, so texts sharing vocabulary score high and a
// text compared with itself scores 1.
type LocalProvider struct {
	model     string
	dimension int
	cache     *VectorCache
}

// NewLocalProvider creates a local embedder. dimension <= 0 uses LocalDimension.
func NewLocalProvider(dimension int, cache *VectorCache) (*LocalProvider, error) {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := checkText(req.Text); err != nil {
		return nil, err
	}

	key := TextKey(l.model, req.Text)
	if emb, ok := l.cache.Get(key); ok {
		return emb, nil
	}

	tokens := tokenize(req.Text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: no word tokens", ErrEmptyText)
	}

	vector := make([]float32, l.dimension)
	for i, tok := range tokens {
		l.addFeature(vector, tok, 1)
		if i > 0 {
			l.addFeature(vector, tokens[i-1]+" "+tok, 0.5)
		}
	}

	emb := &Embedding{
		Vector:    NormalizeVector(vector),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Key:       key,
	}

	l.cache.Put(key, emb)

	return emb, nil
}

func (l *LocalProvider) addFeature(vector []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(len(vector)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vector[idx] += weight
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := checkBatch(req.Texts); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// tokenize lowercases text and splits it on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
