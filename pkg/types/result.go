package types

// Hit represents a single ranked search result
type Hit struct {
	// Identification
	ChunkID int64  `json:"chunk_id"`
	PaperID string `json:"paper_id"`
	Rank    int    `json:"rank"` // Position in result set (1-based)

	// Scoring (scale depends on the strategy that produced the hit)
	Score float64 `json:"score"`

	// Chunk
	SectionTitle string   `json:"section_title"`
	SectionPath  []string `json:"section_path"`
	Content      string   `json:"content"`
	ChunkIndex   int      `json:"chunk_index"`

	// Paper
	PaperTitle string   `json:"paper_title"`
	Authors    []string `json:"authors"`
}

// Stats contains aggregate counts over the store
type Stats struct {
	PaperCount       int     `json:"paper_count"`
	ChunkCount       int     `json:"chunk_count"`
	EmbeddingEnabled bool    `json:"embedding_enabled"`
	EmbeddingCount   *int    `json:"embedding_count,omitempty"` // Only set when embeddings are enabled
	DatabaseSizeMB   float64 `json:"database_size_mb"`
	Backend          string  `json:"backend,omitempty"`
	Model            string  `json:"model,omitempty"`
	Reason           string  `json:"reason,omitempty"` // Why embeddings are disabled
}

// PaperChunk is a stored chunk as returned by a per-paper listing
type PaperChunk struct {
	ChunkID      int64    `json:"chunk_id"`
	PaperID      string   `json:"paper_id"`
	ChunkIndex   int      `json:"chunk_index"`
	SectionTitle string   `json:"section_title"`
	SectionLevel int      `json:"section_level"`
	SectionPath  []string `json:"section_path"`
	Content      string   `json:"content"`
	StartChar    int      `json:"start_char"`
	EndChar      int      `json:"end_char"`
}
