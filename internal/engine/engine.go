// Package engine wires storage, embedding, indexing and search into one
// object. It is the composition root used by the CLI and the MCP server.
//
// One IndexPaper call runs at a time; searches, chunk listings and stats run
// concurrently with each other but never alongside a write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dshills/paperindex/internal/capability"
	"github.com/dshills/paperindex/internal/config"
	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/indexer"
	"github.com/dshills/paperindex/internal/searcher"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// Engine owns the store and the components built on it
type Engine struct {
	mu sync.RWMutex

	store    storage.Storage
	embedder embedder.Embedder
	caps     capability.Capability
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	logger   *slog.Logger
}

// Options tunes the components New builds
type Options struct {
	Indexer  indexer.Config
	Searcher searcher.Config
	Logger   *slog.Logger
}

// New assembles an engine from already-built parts. emb may be nil when caps
// is unavailable. The engine takes ownership of store and emb.
func New(store storage.Storage, emb embedder.Embedder, caps capability.Capability, opts *Options) *Engine {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	idxCfg := opts.Indexer
	idxCfg.Logger = logger
	searchCfg := opts.Searcher
	searchCfg.Logger = logger

	return &Engine{
		store:    store,
		embedder: emb,
		caps:     caps,
		indexer:  indexer.New(store, emb, caps, &idxCfg),
		searcher: searcher.NewSearcher(store, emb, caps, &searchCfg),
		logger:   logger,
	}
}

// Open builds an engine from configuration: it opens the store, discovers
// the vector backend, constructs the embedder and probes capability once.
// Only a store failure is fatal; embedder and backend problems leave the
// engine running with lexical search only.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := ensureDir(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}

	preference := backendPreference(cfg.VectorBackend, runtime.GOOS, runtime.GOARCH)
	store, err := storage.NewSQLiteStorage(cfg.DBPath,
		storage.WithLogger(logger),
		storage.WithVectorBackend(preference),
	)
	if err != nil {
		return nil, err
	}

	backend, backendErr := store.VectorBackend()
	emb, embErr := embedder.New(EmbedderConfig(cfg), logger)

	caps := capability.Probe(logger, capability.Checks{
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		Backend:     backend,
		BackendErr:  backendErr,
		Embedder:    emb,
		EmbedderErr: embErr,
	})
	if !caps.Available && emb != nil {
		_ = emb.Close()
		emb = nil
	}

	e := New(store, emb, caps, &Options{
		Indexer:  indexer.Config{Workers: cfg.Indexer.Workers},
		Searcher: SearcherConfig(cfg),
		Logger:   logger,
	})

	if caps.Available {
		e.warnForeignEmbeddings(ctx)
	}

	logger.Info("engine ready",
		"db_path", cfg.DBPath,
		"build_mode", storage.BuildMode,
		"capability", caps.String(),
	)
	return e, nil
}

// EmbedderConfig maps the embedding section of cfg onto embedder.Config
func EmbedderConfig(cfg *config.Config) embedder.Config {
	return embedder.Config{
		Provider:          cfg.Embedding.Provider,
		Model:             cfg.Embedding.Model,
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Dimension:         cfg.Embedding.Dimension,
		CacheSize:         cfg.Embedding.CacheSize,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
	}
}

// SearcherConfig maps the search section of cfg onto searcher.Config
func SearcherConfig(cfg *config.Config) searcher.Config {
	alpha := cfg.Search.DefaultAlpha
	return searcher.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		RRFConstant:  cfg.Search.RRFConstant,
		DefaultAlpha: &alpha,
		CacheSize:    cfg.Search.CacheSize,
		CacheTTL:     time.Duration(cfg.Search.CacheTTLSecs) * time.Second,
	}
}

// backendPreference downgrades auto to bruteforce where sqlite-vec does not ship.
// An explicit sqlite-vec request is passed through so the probe can report it.
func backendPreference(pref, goos, goarch string) string {
	p := strings.ToLower(strings.TrimSpace(pref))
	if (p == "" || p == storage.BackendAuto) && !capability.NativeSupported(goos, goarch) {
		return storage.BackendBruteForce
	}
	return pref
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}

// warnForeignEmbeddings logs how many stored vectors came from a different
// model. Those rows are skipped by semantic search.
func (e *Engine) warnForeignEmbeddings(ctx context.Context) {
	counts, err := e.store.EmbeddingFingerprints(ctx)
	if err != nil {
		e.logger.Warn("could not inspect stored embeddings", "error", err)
		return
	}

	active := e.caps.Fingerprint()
	skipped := 0
	var models []string
	for fp, n := range counts {
		if fp == active {
			continue
		}
		skipped += n
		models = append(models, fp.String())
	}
	if skipped > 0 {
		e.logger.Warn("stored embeddings from another model will be ignored",
			"skipped", skipped,
			"active", active.String(),
			"stored", strings.Join(models, ","),
		)
	}
}

// Capability returns the probe result fixed at construction
func (e *Engine) Capability() capability.Capability {
	return e.caps
}

// IndexPaper indexes one paper under the write lock and clears the query cache
// once the transaction commits.
func (e *Engine) IndexPaper(ctx context.Context, input types.PaperInput) (*indexer.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.indexer.IndexPaper(ctx, input.PaperID, input.Metadata, input.Chunks)
	if err != nil {
		return nil, err
	}
	e.searcher.InvalidateCache()
	return report, nil
}

// Search runs a query in the requested mode
func (e *Engine) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.searcher.Search(ctx, req)
}

// PaperChunks lists a paper's stored chunks in chunk_index order. Chunks
// appended by a re-index follow the earlier set at each index position.
func (e *Engine) PaperChunks(ctx context.Context, paperID string) ([]types.PaperChunk, error) {
	if strings.TrimSpace(paperID) == "" {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, types.ErrEmptyPaperID)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	records, err := e.store.FetchChunksByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch chunks for %s: %w", types.ErrStorage, paperID, err)
	}

	chunks := make([]types.PaperChunk, len(records))
	for i, r := range records {
		chunks[i] = types.PaperChunk{
			ChunkID:      r.ID,
			PaperID:      r.PaperID,
			ChunkIndex:   r.ChunkIndex,
			SectionTitle: r.SectionTitle,
			SectionLevel: r.SectionLevel,
			SectionPath:  r.SectionPath,
			Content:      r.Content,
			StartChar:    r.StartChar,
			EndChar:      r.EndChar,
		}
	}
	return chunks, nil
}

// Close releases the embedder and the store
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close embedder: %w", err))
		}
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
