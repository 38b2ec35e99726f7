package engine

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/paperindex/internal/capability"
	"github.com/dshills/paperindex/internal/config"
	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/logging"
	"github.com/dshills/paperindex/internal/searcher"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "data", "papers.db")
	cfg.VectorBackend = storage.BackendBruteForce
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.Embedding.Dimension = 512
	return cfg
}

func openEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := Open(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func paper(id, title string, contents ...string) types.PaperInput {
	chunks := make([]types.ChunkInput, len(contents))
	for i, c := range contents {
		section := fmt.Sprintf("Section %d", i+1)
		chunks[i] = types.ChunkInput{
			SectionTitle: section,
			SectionLevel: 1,
			SectionPath:  []string{title, section},
			Content:      c,
			StartChar:    i * 100,
			EndChar:      i*100 + len(c),
		}
	}
	return types.PaperInput{
		PaperID:  id,
		Metadata: types.PaperMetadata{Title: title, Authors: []string{"Ada Lovelace"}},
		Chunks:   chunks,
	}
}

func TestOpen_LocalEmbedderIsAvailable(t *testing.T) {
	e := openEngine(t, testConfig(t))

	caps := e.Capability()
	assert.True(t, caps.Available, caps.Reason)
	assert.Equal(t, storage.BackendBruteForce, caps.Backend)
	assert.Equal(t, embedder.ProviderLocal, caps.Provider)
	assert.Equal(t, 512, caps.Dimension)
}

func TestOpen_DisabledEmbedderFallsBackToLexical(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Provider = embedder.ProviderNone
	e := openEngine(t, cfg)

	caps := e.Capability()
	require.False(t, caps.Available)
	assert.Contains(t, caps.Reason, "embedder")

	ctx := context.Background()
	_, err := e.IndexPaper(ctx, paper("P1", "Sequence Models", "Recurrent neural networks are used in sequence modeling."))
	require.NoError(t, err)

	resp, err := e.Search(ctx, searcher.SearchRequest{Query: "recurrent", Mode: searcher.SearchModeHybrid})
	require.NoError(t, err)
	assert.Equal(t, searcher.SearchModeLexical, resp.EffectiveMode)
	assert.Equal(t, caps.Reason, resp.Fallback)
	require.Len(t, resp.Hits, 1)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.False(t, stats.EmbeddingEnabled)
	assert.Nil(t, stats.EmbeddingCount)
	assert.Equal(t, caps.Reason, stats.Reason)
}

func TestOpen_BackendNoneDisablesSemantic(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorBackend = storage.BackendNone
	e := openEngine(t, cfg)

	assert.False(t, e.Capability().Available)
	assert.Contains(t, e.Capability().Reason, "vector backend")
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.RRFConstant = -1

	_, err := Open(context.Background(), cfg, logging.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestEngine_IndexSearchAndStats(t *testing.T) {
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	report, err := e.IndexPaper(ctx, paper("P1", "Sequence Models",
		"Recurrent neural networks are used in sequence modeling.",
		"Long short-term memory cells mitigate vanishing gradients."))
	require.NoError(t, err)
	assert.Equal(t, 2, report.ChunksIndexed)
	assert.Equal(t, 2, report.EmbeddingsStored)

	_, err = e.IndexPaper(ctx, paper("P2", "Vision",
		"Convolutional neural networks dominate image classification."))
	require.NoError(t, err)

	for _, mode := range []searcher.SearchMode{searcher.SearchModeLexical, searcher.SearchModeSemantic, searcher.SearchModeHybrid} {
		t.Run(string(mode), func(t *testing.T) {
			resp, err := e.Search(ctx, searcher.SearchRequest{Query: "recurrent neural networks", Mode: mode})
			require.NoError(t, err)
			require.NotEmpty(t, resp.Hits)
			assert.Equal(t, "P1", resp.Hits[0].PaperID)
			assert.Equal(t, mode, resp.EffectiveMode)
			assert.Empty(t, resp.Fallback)
		})
	}

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PaperCount)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.True(t, stats.EmbeddingEnabled)
	require.NotNil(t, stats.EmbeddingCount)
	assert.Equal(t, 3, *stats.EmbeddingCount)
	assert.Equal(t, storage.BackendBruteForce, stats.Backend)
	assert.Contains(t, stats.Model, "local/")
	assert.Greater(t, stats.DatabaseSizeMB, 0.0)
}

func TestEngine_ReindexAppendsChunks(t *testing.T) {
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	input := paper("P1", "Sequence Models", "first chunk about attention", "second chunk about memory")
	_, err := e.IndexPaper(ctx, input)
	require.NoError(t, err)
	_, err = e.IndexPaper(ctx, input)
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PaperCount)
	assert.Equal(t, 4, stats.ChunkCount, "chunk count is the sum over index calls")

	chunks, err := e.PaperChunks(ctx, "P1")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	indexes := make([]int, len(chunks))
	for i, c := range chunks {
		indexes[i] = c.ChunkIndex
	}
	assert.Equal(t, []int{0, 0, 1, 1}, indexes)
	assert.Less(t, chunks[0].ChunkID, chunks[1].ChunkID)
	assert.Equal(t, []string{"Sequence Models", "Section 1"}, chunks[0].SectionPath)
}

func TestEngine_PaperChunks(t *testing.T) {
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := e.PaperChunks(ctx, " ")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	chunks, err := e.PaperChunks(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestEngine_IndexInvalidatesQueryCache(t *testing.T) {
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := e.IndexPaper(ctx, paper("P1", "Sequence Models", "transformers use attention"))
	require.NoError(t, err)

	req := searcher.SearchRequest{Query: "attention", Mode: searcher.SearchModeLexical, UseCache: true}
	first, err := e.Search(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Hits, 1)

	cached, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, cached.CacheHit)

	_, err = e.IndexPaper(ctx, paper("P2", "Attention", "attention is all you need"))
	require.NoError(t, err)

	fresh, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fresh.CacheHit)
	assert.Len(t, fresh.Hits, 2)
}

func TestEngine_FailedIndexKeepsCache(t *testing.T) {
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := e.IndexPaper(ctx, paper("P1", "Sequence Models", "transformers use attention"))
	require.NoError(t, err)
	req := searcher.SearchRequest{Query: "attention", Mode: searcher.SearchModeLexical, UseCache: true}
	_, err = e.Search(ctx, req)
	require.NoError(t, err)

	_, err = e.IndexPaper(ctx, types.PaperInput{PaperID: ""})
	require.ErrorIs(t, err, types.ErrInvalidInput)

	again, err := e.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
}

func TestOpen_WarnsAboutEmbeddingsFromAnotherModel(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	first, err := Open(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	_, err = first.IndexPaper(ctx, paper("P1", "Sequence Models", "one", "two", "three"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	cfg.Embedding.Dimension = 64
	var buf bytes.Buffer
	second, err := Open(ctx, cfg, logging.New("warn", "text", &buf))
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	out := buf.String()
	assert.Contains(t, out, "stored embeddings from another model")
	assert.Contains(t, out, "skipped=3")

	resp, err := second.Search(ctx, searcher.SearchRequest{Query: "one", Mode: searcher.SearchModeSemantic})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits, "vectors from another model are never compared")
}

func TestNew_WithInjectedParts(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:",
		storage.WithVectorBackend(storage.BackendBruteForce),
		storage.WithLogger(logging.Discard()))
	require.NoError(t, err)

	emb, err := embedder.NewLocalProvider(32, nil)
	require.NoError(t, err)
	caps := capability.Enabled(storage.BackendBruteForce, embedder.Fingerprint(emb))

	e := New(store, emb, caps, &Options{Logger: logging.Discard()})
	defer func() { _ = e.Close() }()

	ctx := context.Background()
	_, err = e.IndexPaper(ctx, paper("P1", "Graphs", "graph neural networks pass messages"))
	require.NoError(t, err)

	resp, err := e.Search(ctx, searcher.SearchRequest{Query: "graph messages", Mode: searcher.SearchModeSemantic})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "P1", resp.Hits[0].PaperID)
}

func TestEngine_ConcurrentReadersAndWriter(t *testing.T) {
	e := openEngine(t, testConfig(t))
	ctx := context.Background()

	_, err := e.IndexPaper(ctx, paper("P0", "Seed", "seed text about retrieval"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.IndexPaper(ctx, paper(fmt.Sprintf("W%d", i), "Writer", "retrieval augmented generation"))
			errs <- err
		}(i)
	}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Search(ctx, searcher.SearchRequest{Query: "retrieval", Mode: searcher.SearchModeHybrid})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.PaperCount)
	assert.Equal(t, 5, stats.ChunkCount)
}

func TestBackendPreference(t *testing.T) {
	tests := []struct {
		pref, goos, goarch string
		want               string
	}{
		{"auto", "linux", "amd64", "auto"},
		{"", "darwin", "arm64", ""},
		{"auto", "freebsd", "amd64", storage.BackendBruteForce},
		{"", "linux", "riscv64", storage.BackendBruteForce},
		{"sqlite-vec", "freebsd", "amd64", "sqlite-vec"},
		{"none", "plan9", "386", "none"},
	}

	for _, tt := range tests {
		t.Run(tt.pref+"_"+tt.goos+"_"+tt.goarch, func(t *testing.T) {
			assert.Equal(t, tt.want, backendPreference(tt.pref, tt.goos, tt.goarch))
		})
	}
}

func TestConfigMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.TimeoutSecs = 5
	cfg.Search.CacheTTLSecs = 120

	ec := EmbedderConfig(cfg)
	assert.Equal(t, "local", ec.Provider)
	assert.Equal(t, "5s", ec.Timeout.String())

	sc := SearcherConfig(cfg)
	assert.Equal(t, 60.0, sc.RRFConstant)
	assert.Equal(t, "2m0s", sc.CacheTTL.String())
	require.NotNil(t, sc.DefaultAlpha)
	assert.Equal(t, 0.5, *sc.DefaultAlpha)

	cfg.Search.DefaultAlpha = 0
	sc = SearcherConfig(cfg)
	require.NotNil(t, sc.DefaultAlpha)
	assert.Equal(t, 0.0, *sc.DefaultAlpha, "pure semantic default survives the mapping")
}
