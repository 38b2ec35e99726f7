package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/paperindex/internal/capability"
	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// Semantic ranks chunks by cosine similarity between the query embedding and
// every stored embedding with the active fingerprint.
type Semantic struct {
	storage    storage.Storage
	embedder   embedder.Embedder
	capability capability.Capability
	logger     *slog.Logger
}

// NewSemantic creates a semantic strategy. emb may be nil when caps is unavailable.
func NewSemantic(store storage.Storage, emb embedder.Embedder, caps capability.Capability, logger *slog.Logger) *Semantic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Semantic{storage: store, embedder: emb, capability: caps, logger: logger}
}

// Available reports whether queries can be encoded and compared
func (s *Semantic) Available() bool {
	return s.capability.Available && s.embedder != nil
}

// Reason explains why Available is false
func (s *Semantic) Reason() string {
	if s.capability.Available && s.embedder == nil {
		return "no embedder"
	}
	return s.capability.Reason
}

// Query returns up to limit hits by descending similarity. It returns an
// empty list when unavailable or when the query cannot be encoded; only
// storage failures are returned as errors.
func (s *Semantic) Query(ctx context.Context, text string, limit int, paperFilter string) ([]types.Hit, error) {
	results, err := s.rank(ctx, text, limit, paperFilter)
	if err != nil || len(results) == 0 {
		return []types.Hit{}, err
	}

	ids := make([]int64, len(results))
	scores := make(map[int64]float64, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
		scores[r.ChunkID] = r.SimilarityScore
	}

	hits, err := hydrate(ctx, s.storage, ids, func(id int64) float64 { return scores[id] })
	if err != nil {
		return []types.Hit{}, storageError("semantic search: load chunks", err)
	}
	return hits, nil
}

func (s *Semantic) rank(ctx context.Context, text string, limit int, paperFilter string) ([]storage.VectorResult, error) {
	if !s.Available() || limit <= 0 {
		return nil, nil
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		s.logger.Warn("query embedding failed, semantic results empty", "query", text, "error", err)
		return nil, nil
	}

	results, err := s.storage.SearchVector(ctx, storage.VectorQuery{
		Vector:      emb.Vector,
		Fingerprint: s.capability.Fingerprint(),
		Limit:       limit,
		PaperFilter: paperFilter,
	})
	if err != nil {
		return nil, storageError("semantic search: vector scan", err)
	}
	return results, nil
}

// storageError makes sure err carries types.ErrStorage
func storageError(op string, err error) error {
	if errors.Is(err, types.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", types.ErrStorage, op, err)
}
