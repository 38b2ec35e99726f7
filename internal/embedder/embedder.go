package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/paperindex/internal/storage"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Key       string // TextKey of the source text
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text string
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse represents a batch response
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns text into unit-length vectors. Implementations are
// deterministic for a given model and safe for concurrent use.
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts, in input order
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Fingerprint identifies the vectors an embedder produces. Stored vectors are
// only compared against queries carrying the same fingerprint.
func Fingerprint(e Embedder) storage.Fingerprint {
	return storage.Fingerprint{
		Provider:  e.Provider(),
		Model:     e.Model(),
		Dimension: e.Dimension(),
	}
}

// VectorCache remembers embeddings by TextKey. A nil *VectorCache is a valid
// cache that never hits.
type VectorCache struct {
	lru *lru.Cache[string, *Embedding]
}

// NewVectorCache returns nil when size is not positive.
func NewVectorCache(size int) *VectorCache {
	if size <= 0 {
		return nil
	}
	l, _ := lru.New[string, *Embedding](size)
	return &VectorCache{lru: l}
}

func (c *VectorCache) Get(key string) (*Embedding, bool) {
	if c == nil {
		return nil, false
	}
	emb, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return emb.clone(), true
}

func (c *VectorCache) Put(key string, emb *Embedding) {
	if c == nil || emb == nil {
		return
	}
	c.lru.Add(key, emb.clone())
}

func (c *VectorCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *VectorCache) Purge() {
	if c != nil {
		c.lru.Purge()
	}
}

func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = append([]float32(nil), e.Vector...)
	return &out
}

// TextKey identifies a text under one model. The model is part of the key so
// a cache shared across models cannot return a foreign vector.
func TextKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}

func checkBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	for i, text := range texts {
		if checkText(text) != nil {
			return fmt.Errorf("%w: text %d is blank", ErrInvalidInput, i)
		}
	}
	return nil
}
