package searcher

import (
	"context"
	"log/slog"

	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// Lexical ranks chunks by FTS5 bm25. It never fails: backend errors are
// logged and produce an empty result.
type Lexical struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewLexical creates a lexical strategy over store
func NewLexical(store storage.Storage, logger *slog.Logger) *Lexical {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lexical{storage: store, logger: logger}
}

// Query returns up to limit hits ordered by ascending bm25. Hit.Score is the raw bm25 value.
func (l *Lexical) Query(ctx context.Context, text string, limit int, paperFilter string) []types.Hit {
	results := l.rank(ctx, text, limit, paperFilter)
	if len(results) == 0 {
		return []types.Hit{}
	}

	ids := make([]int64, len(results))
	scores := make(map[int64]float64, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
		scores[r.ChunkID] = r.BM25Score
	}

	hits, err := hydrate(ctx, l.storage, ids, func(id int64) float64 { return scores[id] })
	if err != nil {
		l.logger.Warn("lexical search failed to load chunks", "query", text, "error", err)
		return []types.Hit{}
	}
	return hits
}

// rank returns chunk ids in bm25 order, or nil on any backend error
func (l *Lexical) rank(ctx context.Context, text string, limit int, paperFilter string) []storage.TextResult {
	results, err := l.storage.SearchText(ctx, text, limit, paperFilter)
	if err != nil {
		l.logger.Warn("lexical search failed", "query", text, "error", err)
		return nil
	}
	return results
}

// hydrate loads full records for ids, keeping their order, and assigns 1-based ranks
func hydrate(ctx context.Context, store storage.Storage, ids []int64, score func(int64) float64) ([]types.Hit, error) {
	records, err := store.FetchChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]types.Hit, 0, len(records))
	for _, r := range records {
		hits = append(hits, r.ToHit(len(hits)+1, score(r.ID)))
	}
	return hits, nil
}
