package searcher

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// DefaultRRFConstant is the rank damping term k
const DefaultRRFConstant = 60.0

// Fused is one chunk's Reciprocal Rank Fusion result
type Fused struct {
	ChunkID      int64
	Score        float64
	LexicalRank  int // 1-based; 2*limit+1 when absent from the lexical list
	SemanticRank int // 1-based; 2*limit+1 when absent from the semantic list
}

// FuseRanks combines two ranked id lists:
//
//	score = alpha/(k + lexicalRank) + (1-alpha)/(k + semanticRank)
//
// An id missing from one list takes rank 2*limit+1 there. Results are sorted
// by score descending, then lexical rank, semantic rank and chunk id, and
// truncated to limit.
func FuseRanks(lexical, semantic []int64, limit int, alpha, k float64) []Fused {
	if limit <= 0 {
		return []Fused{}
	}
	absent := 2*limit + 1

	byID := make(map[int64]*Fused, len(lexical)+len(semantic))
	order := make([]int64, 0, len(lexical)+len(semantic))
	entry := func(id int64) *Fused {
		f, ok := byID[id]
		if !ok {
			f = &Fused{ChunkID: id, LexicalRank: absent, SemanticRank: absent}
			byID[id] = f
			order = append(order, id)
		}
		return f
	}

	for i, id := range lexical {
		if f := entry(id); f.LexicalRank == absent {
			f.LexicalRank = i + 1
		}
	}
	for i, id := range semantic {
		if f := entry(id); f.SemanticRank == absent {
			f.SemanticRank = i + 1
		}
	}

	fused := make([]Fused, 0, len(order))
	for _, id := range order {
		f := byID[id]
		f.Score = alpha/(k+float64(f.LexicalRank)) + (1-alpha)/(k+float64(f.SemanticRank))
		fused = append(fused, *f)
	}

	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.LexicalRank != b.LexicalRank {
			return a.LexicalRank < b.LexicalRank
		}
		if a.SemanticRank != b.SemanticRank {
			return a.SemanticRank < b.SemanticRank
		}
		return a.ChunkID < b.ChunkID
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}
	return fused
}

// Fusion composes Lexical and Semantic with Reciprocal Rank Fusion
type Fusion struct {
	lexical  *Lexical
	semantic *Semantic
	storage  storage.Storage
	k        float64
	logger   *slog.Logger
}

// NewFusion creates a fusion strategy. k <= 0 uses DefaultRRFConstant.
func NewFusion(lexical *Lexical, semantic *Semantic, store storage.Storage, k float64, logger *slog.Logger) *Fusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fusion{lexical: lexical, semantic: semantic, storage: store, k: k, logger: logger}
}

// Query returns the fused ranking. When semantic search is unavailable it
// returns the lexical result unchanged and fused is false.
func (f *Fusion) Query(ctx context.Context, text string, limit int, alpha float64, paperFilter string) (hits []types.Hit, fused bool, err error) {
	if !f.semantic.Available() {
		return f.lexical.Query(ctx, text, limit, paperFilter), false, nil
	}
	if limit <= 0 {
		return []types.Hit{}, true, nil
	}

	var lexical []storage.TextResult
	var semantic []storage.VectorResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = f.lexical.rank(gctx, text, 2*limit, paperFilter)
		return nil
	})
	g.Go(func() error {
		var err error
		semantic, err = f.semantic.rank(gctx, text, 2*limit, paperFilter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, true, err
	}

	lexIDs := make([]int64, len(lexical))
	for i, r := range lexical {
		lexIDs[i] = r.ChunkID
	}
	semIDs := make([]int64, len(semantic))
	for i, r := range semantic {
		semIDs[i] = r.ChunkID
	}

	ranked := FuseRanks(lexIDs, semIDs, limit, alpha, f.k)
	if len(ranked) == 0 {
		return []types.Hit{}, true, nil
	}

	ids := make([]int64, len(ranked))
	scores := make(map[int64]float64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ChunkID
		scores[r.ChunkID] = r.Score
	}

	hits, err = hydrate(ctx, f.storage, ids, func(id int64) float64 { return scores[id] })
	if err != nil {
		return nil, true, storageError("hybrid search: load chunks", err)
	}
	return hits, true, nil
}
