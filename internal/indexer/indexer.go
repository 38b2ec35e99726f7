package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/paperindex/internal/capability"
	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// Indexer coordinates the indexing pipeline: validate -> encode -> store
type Indexer struct {
	storage    storage.Storage
	embedder   embedder.Embedder
	capability capability.Capability
	logger     *slog.Logger

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers int // Concurrent encode calls (default: runtime.NumCPU())
	Logger  *slog.Logger
}

// Report summarizes one IndexPaper call
type Report struct {
	RunID            uuid.UUID
	PaperID          string
	ChunksIndexed    int
	EmbeddingsStored int
	EmbeddingsFailed int
	Duration         time.Duration
	ErrorMessages    []string // Row-level failures, at most one per chunk
}

// New creates a new Indexer. emb may be nil when caps is unavailable.
func New(store storage.Storage, emb embedder.Embedder, caps capability.Capability, config *Config) *Indexer {
	if config == nil {
		config = &Config{}
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		storage:    store,
		embedder:   emb,
		capability: caps,
		logger:     logger,
		workers:    workers,
	}
}

// IndexPaper stores a paper's metadata and appends its chunks in one
// transaction. Chunks get chunk_index equal to their position in the input.
// Re-indexing a paper appends a second set of chunks; earlier rows are kept.
//
// Embedding failures are logged and counted in the report; they never abort
// the run. Structural storage failures wrap types.ErrIndexing.
func (idx *Indexer) IndexPaper(ctx context.Context, paperID string, meta types.PaperMetadata, chunks []types.ChunkInput) (*Report, error) {
	input := types.PaperInput{PaperID: paperID, Metadata: meta, Chunks: chunks}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	report := &Report{
		RunID:   uuid.New(),
		PaperID: paperID,
	}
	logger := idx.logger.With("run_id", report.RunID.String(), "paper_id", paperID)

	vectors, err := idx.encodeChunks(ctx, logger, chunks, report)
	if err != nil {
		return nil, err
	}

	if err := idx.store(ctx, logger, paperID, meta, chunks, vectors, report); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	logger.Info("paper indexed",
		"chunks", report.ChunksIndexed,
		"embeddings", report.EmbeddingsStored,
		"embedding_failures", report.EmbeddingsFailed,
		"duration", report.Duration,
	)
	return report, nil
}

// encodeChunks embeds every chunk concurrently. vectors[i] is nil when chunk
// i could not be encoded or when semantic search is unavailable.
func (idx *Indexer) encodeChunks(ctx context.Context, logger *slog.Logger, chunks []types.ChunkInput, report *Report) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	if !idx.capability.Available || idx.embedder == nil {
		return vectors, nil
	}

	errs := make([]error, len(chunks))
	var failed int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i := range chunks {
		g.Go(func() error {
			emb, err := idx.embedder.GenerateEmbedding(gctx, embedder.EmbeddingRequest{Text: chunks[i].Content})
			if err == nil && emb.Dimension != idx.capability.Dimension {
				err = fmt.Errorf("%w: got %d, want %d", embedder.ErrDimensionMismatch, emb.Dimension, idx.capability.Dimension)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				atomic.AddInt32(&failed, 1)
				errs[i] = err
				return nil
			}
			vectors[i] = emb.Vector
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: encode chunks: %w", types.ErrIndexing, err)
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		logger.Warn("embedding generation failed, chunk stays lexical-only", "chunk_index", i, "error", err)
		report.ErrorMessages = append(report.ErrorMessages, fmt.Sprintf("chunk %d: encode: %v", i, err))
	}
	report.EmbeddingsFailed = int(failed)

	return vectors, nil
}

func (idx *Indexer) store(ctx context.Context, logger *slog.Logger, paperID string, meta types.PaperMetadata,
	chunks []types.ChunkInput, vectors [][]float32, report *Report) error {

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return structural("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.UpsertPaper(ctx, storage.FromMetadata(paperID, meta)); err != nil {
		return structural("upsert paper", err)
	}

	rows := make([]*storage.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = &storage.Chunk{
			SectionTitle: c.SectionTitle,
			SectionLevel: c.SectionLevel,
			SectionPath:  c.SectionPath,
			Content:      c.Content,
			ChunkIndex:   i,
			StartChar:    c.StartChar,
			EndChar:      c.EndChar,
		}
	}

	ids, err := tx.AppendChunks(ctx, paperID, rows)
	if err != nil {
		return structural("insert chunks", err)
	}

	entries := make([]storage.LexicalEntry, len(rows))
	for i, row := range rows {
		entries[i] = storage.LexicalEntry{
			ChunkID:      ids[i],
			PaperID:      paperID,
			Title:        meta.Title,
			Content:      row.Content,
			SectionTitle: row.SectionTitle,
		}
	}
	if err := tx.WriteLexicalEntries(ctx, entries); err != nil {
		return structural("write lexical entries", err)
	}

	fp := idx.capability.Fingerprint()
	for i, vector := range vectors {
		if vector == nil {
			continue
		}
		err := tx.WriteEmbedding(ctx, &storage.Embedding{ChunkID: ids[i], Vector: vector, Fingerprint: fp})
		if err != nil {
			logger.Warn("embedding write failed, chunk stays lexical-only", "chunk_id", ids[i], "error", err)
			report.ErrorMessages = append(report.ErrorMessages, fmt.Sprintf("chunk %d: store embedding: %v", i, err))
			report.EmbeddingsFailed++
			continue
		}
		report.EmbeddingsStored++
	}

	if err := tx.Commit(); err != nil {
		return structural("commit", err)
	}

	report.ChunksIndexed = len(ids)
	return nil
}

// structural wraps a storage failure that aborts the whole IndexPaper call
func structural(op string, err error) error {
	if errors.Is(err, types.ErrStorage) {
		return fmt.Errorf("%w: %s: %w", types.ErrIndexing, op, err)
	}
	return fmt.Errorf("%w: %w: %s: %v", types.ErrIndexing, types.ErrStorage, op, err)
}
