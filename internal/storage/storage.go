package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/paperindex/pkg/types"
)

// Storage defines the interface for persisting and querying indexed papers
type Storage interface {
	// Paper operations
	UpsertPaper(ctx context.Context, paper *Paper) error
	GetPaper(ctx context.Context, paperID string) (*Paper, error)

	// Chunk operations
	AppendChunks(ctx context.Context, paperID string, chunks []*Chunk) ([]int64, error)
	WriteLexicalEntries(ctx context.Context, entries []LexicalEntry) error
	FetchChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*ChunkRecord, error)
	FetchChunksByPaper(ctx context.Context, paperID string) ([]*ChunkRecord, error)

	// Embedding operations
	WriteEmbedding(ctx context.Context, embedding *Embedding) error
	EmbeddingFingerprints(ctx context.Context) (map[Fingerprint]int, error)

	// Search operations
	SearchText(ctx context.Context, query string, limit int, paperFilter string) ([]TextResult, error)
	SearchVector(ctx context.Context, query VectorQuery) ([]VectorResult, error)

	// Status operations
	CountPapers(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	CountEmbeddings(ctx context.Context) (int, error)
	DatabaseSizeMB(ctx context.Context) (float64, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Paper is the stored form of a paper's metadata
type Paper struct {
	PaperID       string
	Title         string
	Authors       []string
	Abstract      string
	Categories    []string
	PublishedDate string
	PDFPath       string
	MarkdownPath  string
	JSONPath      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Chunk is one stored, section-scoped slice of a paper
type Chunk struct {
	ID           int64
	PaperID      string
	SectionTitle string
	SectionLevel int
	SectionPath  []string
	Content      string
	ChunkIndex   int
	StartChar    int
	EndChar      int
	CreatedAt    time.Time
}

// ChunkRecord is a chunk joined with its paper's display fields
type ChunkRecord struct {
	Chunk
	PaperTitle string
	Authors    []string
}

// LexicalEntry is the full-text projection of a chunk
type LexicalEntry struct {
	ChunkID      int64
	PaperID      string
	Title        string // Paper title
	Content      string
	SectionTitle string
}

// Fingerprint identifies the embedding model that produced a vector
type Fingerprint struct {
	Provider  string
	Model     string
	Dimension int
}

// String returns provider/model@dimension
func (f Fingerprint) String() string {
	return fmt.Sprintf("%s/%s@%d", f.Provider, f.Model, f.Dimension)
}

// IsZero reports whether the fingerprint is unset
func (f Fingerprint) IsZero() bool {
	return f.Provider == "" && f.Model == "" && f.Dimension == 0
}

// Embedding represents a normalized vector embedding for a chunk
type Embedding struct {
	ChunkID     int64
	Vector      []float32
	Fingerprint Fingerprint
	CreatedAt   time.Time
}

// VectorQuery describes a brute-force similarity scan
type VectorQuery struct {
	Vector      []float32
	Fingerprint Fingerprint // Only embeddings with this fingerprint are compared
	Limit       int
	PaperFilter string // Exact paper_id match; empty means all papers
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   int64
	BM25Score float64 // Raw bm25, lower is better
}

// FromMetadata builds a stored paper from the indexer's input form
func FromMetadata(paperID string, meta types.PaperMetadata) *Paper {
	return &Paper{
		PaperID:       paperID,
		Title:         meta.Title,
		Authors:       meta.Authors,
		Abstract:      meta.Abstract,
		Categories:    meta.Categories,
		PublishedDate: meta.PublishedDate,
		PDFPath:       meta.PDFPath,
		MarkdownPath:  meta.MarkdownPath,
		JSONPath:      meta.JSONPath,
	}
}

// ToHit converts a chunk record into a search hit
func (r *ChunkRecord) ToHit(rank int, score float64) types.Hit {
	return types.Hit{
		ChunkID:      r.ID,
		PaperID:      r.PaperID,
		Rank:         rank,
		Score:        score,
		SectionTitle: r.SectionTitle,
		SectionPath:  r.SectionPath,
		Content:      r.Content,
		ChunkIndex:   r.ChunkIndex,
		PaperTitle:   r.PaperTitle,
		Authors:      r.Authors,
	}
}
