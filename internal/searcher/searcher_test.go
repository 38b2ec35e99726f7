package searcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/paperindex/internal/capability"
	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/indexer"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

type corpus struct {
	store *storage.SQLiteStorage
	emb   embedder.Embedder
	caps  capability.Capability
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// setupCorpus indexes three small papers with the local embedder
func setupCorpus(t testing.TB) *corpus {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:", storage.WithVectorBackend(storage.BackendBruteForce), storage.WithLogger(quietLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	emb, err := embedder.NewLocalProvider(256, nil)
	require.NoError(t, err)
	caps := capability.Enabled(storage.BackendBruteForce, embedder.Fingerprint(emb))

	idx := indexer.New(store, emb, caps, &indexer.Config{Logger: quietLogger()})
	ctx := context.Background()

	papers := []struct {
		id, title string
		sections  [][2]string
	}{
		{"P1", "Sequence Models", [][2]string{
			{"Introduction", "Recurrent neural networks are used in sequence modeling."},
			{"Background", "Long short-term memory cells mitigate vanishing gradients."},
		}},
		{"P2", "Vision", [][2]string{
			{"Introduction", "Convolutional neural networks dominate image classification."},
			{"Method", "Vision transformers split images into patches."},
		}},
		{"P3", "Graphs", [][2]string{
			{"Introduction", "Graph neural networks propagate messages between nodes."},
			{"Related Work", "Spectral methods operate on the graph Laplacian."},
		}},
	}
	for _, p := range papers {
		chunks := make([]types.ChunkInput, len(p.sections))
		for i, s := range p.sections {
			chunks[i] = types.ChunkInput{SectionTitle: s[0], SectionPath: []string{p.title, s[0]}, Content: s[1]}
		}
		_, err := idx.IndexPaper(ctx, p.id, types.PaperMetadata{Title: p.title, Authors: []string{"Ada"}}, chunks)
		require.NoError(t, err)
	}

	return &corpus{store: store, emb: emb, caps: caps}
}

func hitIDs(hits []types.Hit) []int64 {
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func alpha(v float64) *float64 { return &v }

func TestLexical_RecurrentNetworksScenario(t *testing.T) {
	c := setupCorpus(t)
	lex := NewLexical(c.store, quietLogger())

	hits := lex.Query(context.Background(), "recurrent neural networks", 10, "")
	require.Len(t, hits, 1)
	assert.Equal(t, "P1", hits[0].PaperID)
	assert.Equal(t, "Introduction", hits[0].SectionTitle)
	assert.Equal(t, "Sequence Models", hits[0].PaperTitle)
	assert.Equal(t, []string{"Ada"}, hits[0].Authors)
	assert.Equal(t, 1, hits[0].Rank)
	assert.Less(t, hits[0].Score, 0.0)
}

func TestLexical_FilterAndLimit(t *testing.T) {
	c := setupCorpus(t)
	lex := NewLexical(c.store, quietLogger())
	ctx := context.Background()

	all := lex.Query(ctx, "neural networks", 10, "")
	assert.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Score, all[i].Score, "ascending bm25")
	}

	filtered := lex.Query(ctx, "neural networks", 10, "P2")
	require.Len(t, filtered, 1)
	assert.Equal(t, "P2", filtered[0].PaperID)

	assert.Len(t, lex.Query(ctx, "neural networks", 2, ""), 2)
	assert.Empty(t, lex.Query(ctx, `"'`, 10, ""))
	assert.Empty(t, lex.Query(ctx, "NEAR(", 10, ""))
}

func TestLexical_BackendErrorIsEmpty(t *testing.T) {
	c := setupCorpus(t)
	var logs bytes.Buffer
	lex := NewLexical(c.store, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, c.store.Close())

	hits := lex.Query(context.Background(), "neural", 10, "")
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
	assert.Contains(t, logs.String(), "lexical search failed")
}

func TestSemantic_SelfQueryIsTopHit(t *testing.T) {
	c := setupCorpus(t)
	sem := NewSemantic(c.store, c.emb, c.caps, quietLogger())

	hits, err := sem.Query(context.Background(), "Vision transformers split images into patches.", 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 6)
	assert.Equal(t, "Method", hits[0].SectionTitle)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	for i, h := range hits {
		assert.GreaterOrEqual(t, h.Score, -1.0)
		assert.LessOrEqual(t, h.Score, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, hits[i-1].Score, h.Score)
		}
	}

	filtered, err := sem.Query(context.Background(), "patches", 10, "P3")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestSemantic_UnavailableIsEmpty(t *testing.T) {
	c := setupCorpus(t)
	sem := NewSemantic(c.store, nil, capability.Disabled("no model"), quietLogger())

	assert.False(t, sem.Available())
	assert.Equal(t, "no model", sem.Reason())
	hits, err := sem.Query(context.Background(), "neural", 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

type failingEmbedder struct{ embedder.Embedder }

func (f failingEmbedder) GenerateEmbedding(context.Context, embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return nil, errors.New("model crashed")
}

func TestSemantic_EncodeFailureIsEmpty(t *testing.T) {
	c := setupCorpus(t)
	sem := NewSemantic(c.store, failingEmbedder{c.emb}, c.caps, quietLogger())

	hits, err := sem.Query(context.Background(), "neural", 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSemantic_StorageFailurePropagates(t *testing.T) {
	c := setupCorpus(t)
	sem := NewSemantic(c.store, c.emb, c.caps, quietLogger())
	require.NoError(t, c.store.Close())

	_, err := sem.Query(context.Background(), "neural", 10, "")
	assert.ErrorIs(t, err, types.ErrStorage)
}

func TestSemantic_OtherFingerprintsIgnored(t *testing.T) {
	c := setupCorpus(t)
	other, err := embedder.NewLocalProvider(128, nil)
	require.NoError(t, err)
	caps := capability.Enabled(storage.BackendBruteForce, embedder.Fingerprint(other))
	sem := NewSemantic(c.store, other, caps, quietLogger())

	hits, err := sem.Query(context.Background(), "neural networks", 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits, "vectors from a different dimension are never compared")
}

func TestSearch_HybridAlphaOneMatchesLexical(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	ctx := context.Background()

	lexical, err := s.Search(ctx, SearchRequest{Query: "neural networks", Mode: SearchModeLexical, Limit: 3})
	require.NoError(t, err)
	hybrid, err := s.Search(ctx, SearchRequest{Query: "neural networks", Mode: SearchModeHybrid, Limit: 3, Alpha: alpha(1)})
	require.NoError(t, err)

	require.Len(t, lexical.Hits, 3)
	assert.Equal(t, hitIDs(lexical.Hits), hitIDs(hybrid.Hits))
	assert.Equal(t, SearchModeHybrid, hybrid.EffectiveMode)
}

func TestSearch_HybridAlphaZeroMatchesSemantic(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	ctx := context.Background()

	semantic, err := s.Search(ctx, SearchRequest{Query: "graph neural networks", Mode: SearchModeSemantic, Limit: 3})
	require.NoError(t, err)
	hybrid, err := s.Search(ctx, SearchRequest{Query: "graph neural networks", Mode: SearchModeHybrid, Limit: 3, Alpha: alpha(0)})
	require.NoError(t, err)

	require.Len(t, semantic.Hits, 3)
	assert.Equal(t, hitIDs(semantic.Hits), hitIDs(hybrid.Hits))
}

func TestSearch_HybridScoresAreFused(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})

	resp, err := s.Search(context.Background(), SearchRequest{Query: "neural networks", Limit: 2})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 2)
	for i, h := range resp.Hits {
		assert.Equal(t, i+1, h.Rank)
		assert.Greater(t, h.Score, 0.0)
		assert.LessOrEqual(t, h.Score, 1.0/61)
	}
	assert.GreaterOrEqual(t, resp.Hits[0].Score, resp.Hits[1].Score)
}

func TestSearch_DisabledCapabilityDegradesToLexical(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, nil, capability.Disabled("embedding provider none"), &Config{Logger: quietLogger()})
	ctx := context.Background()

	lexical, err := s.Search(ctx, SearchRequest{Query: "neural networks", Mode: SearchModeLexical})
	require.NoError(t, err)
	hybrid, err := s.Search(ctx, SearchRequest{Query: "neural networks"})
	require.NoError(t, err)

	assert.Equal(t, lexical.Hits, hybrid.Hits)
	assert.Equal(t, SearchModeHybrid, hybrid.Mode)
	assert.Equal(t, SearchModeLexical, hybrid.EffectiveMode)
	assert.Equal(t, "embedding provider none", hybrid.Fallback)
	assert.Empty(t, lexical.Fallback)

	semantic, err := s.Search(ctx, SearchRequest{Query: "neural networks", Mode: "vector"})
	require.NoError(t, err)
	require.NotEmpty(t, semantic.Hits)
	assert.Equal(t, hitIDs(lexical.Hits), hitIDs(semantic.Hits))
	assert.Equal(t, SearchModeSemantic, semantic.Mode)
	assert.Equal(t, SearchModeLexical, semantic.EffectiveMode)
	assert.Equal(t, "embedding provider none", semantic.Fallback)

	// The strategy itself stays empty; only the facade substitutes
	direct, err := s.Semantic().Query(ctx, "neural networks", 5, "")
	require.NoError(t, err)
	assert.Empty(t, direct)
}

func TestSearch_Validation(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger(), MaxLimit: 4})
	ctx := context.Background()

	_, err := s.Search(ctx, SearchRequest{Query: "x", Mode: "fuzzy"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	resp, err := s.Search(ctx, SearchRequest{Query: "neural networks", Mode: SearchModeSemantic, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, resp.Hits, 4, "limit clamped to MaxLimit")

	// Out of range alpha is clamped rather than rejected
	resp, err = s.Search(ctx, SearchRequest{Query: "neural networks", Limit: 3, Alpha: alpha(7)})
	require.NoError(t, err)
	lexical, err := s.Search(ctx, SearchRequest{Query: "neural networks", Mode: SearchModeLexical, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, hitIDs(lexical.Hits), hitIDs(resp.Hits))
}

func TestSearch_BlankQueryIsEmpty(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	ctx := context.Background()

	for _, q := range []string{"", "   ", "\"\"", "---"} {
		for _, mode := range []SearchMode{SearchModeLexical, SearchModeSemantic, SearchModeHybrid} {
			resp, err := s.Search(ctx, SearchRequest{Query: q, Mode: mode, UseCache: true})
			require.NoError(t, err, "%q %s", q, mode)
			require.NotNil(t, resp)
			assert.Empty(t, resp.Hits, "%q %s", q, mode)
			assert.Equal(t, 0, resp.TotalResults)
		}
	}
	assert.Equal(t, 0, s.CacheLen())
}

func TestSearch_DefaultAlphaZeroIsSemantic(t *testing.T) {
	c := setupCorpus(t)
	ctx := context.Background()

	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger(), DefaultAlpha: alpha(0)})
	hybrid, err := s.Search(ctx, SearchRequest{Query: "graph neural networks", Limit: 3})
	require.NoError(t, err)
	semantic, err := s.Search(ctx, SearchRequest{Query: "graph neural networks", Mode: SearchModeSemantic, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, hitIDs(semantic.Hits), hitIDs(hybrid.Hits))

	// Unset falls back to an even split
	even := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	require.NotNil(t, even.config.DefaultAlpha)
	assert.Equal(t, 0.5, *even.config.DefaultAlpha)
}

func TestParseMode(t *testing.T) {
	tests := map[string]SearchMode{
		"":         SearchModeHybrid,
		"hybrid":   SearchModeHybrid,
		"BM25":     SearchModeLexical,
		"keyword":  SearchModeLexical,
		"lexical":  SearchModeLexical,
		"vector":   SearchModeSemantic,
		"semantic": SearchModeSemantic,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("fuzzy")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSearch_Cache(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	ctx := context.Background()
	req := SearchRequest{Query: "neural networks", UseCache: true}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, s.CacheLen())

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, hitIDs(first.Hits), hitIDs(second.Hits))

	// Mutating a cached copy does not leak into the cache
	second.Hits[0].Content = "changed"
	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", third.Hits[0].Content)

	s.InvalidateCache()
	assert.Equal(t, 0, s.CacheLen())
	fourth, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fourth.CacheHit)
}

func TestSearch_CacheExpires(t *testing.T) {
	c := setupCorpus(t)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	ctx := context.Background()
	req := SearchRequest{Query: "neural networks", UseCache: true, CacheTTL: time.Millisecond}

	_, err := s.Search(ctx, req)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	resp, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func BenchmarkSearch_Hybrid(b *testing.B) {
	c := setupCorpus(b)
	s := NewSearcher(c.store, c.emb, c.caps, &Config{Logger: quietLogger()})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Search(ctx, SearchRequest{Query: "neural networks", Limit: 5})
	}
}
