package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/paperindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger

	backend    VectorBackend
	backendErr error
}

// Option configures a SQLiteStorage
type Option func(*storageOptions)

type storageOptions struct {
	logger           *slog.Logger
	vectorPreference string
}

// WithLogger sets the logger used for discovery and maintenance messages
func WithLogger(logger *slog.Logger) Option {
	return func(o *storageOptions) { o.logger = logger }
}

// WithVectorBackend selects the vector backend preference: auto, sqlite-vec, bruteforce or none
func WithVectorBackend(preference string) Option {
	return func(o *storageOptions) { o.vectorPreference = preference }
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// One connection: SQLite has a single writer, and :memory: databases are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (creating if needed) the store at dbPath, applies
// migrations and discovers the vector backend. Failures wrap types.ErrStorage.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	o := storageOptions{
		logger:           slog.Default(),
		vectorPreference: BackendAuto,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", types.ErrStorage, err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to apply migrations: %w", types.ErrStorage, err)
	}

	s := &SQLiteStorage{db: db, logger: o.logger}
	s.backend, s.backendErr = DiscoverVectorBackend(ctx, db, o.vectorPreference)
	if s.backendErr != nil {
		o.logger.Debug("vector backend discovery failed", "preference", o.vectorPreference, "error", s.backendErr)
	} else {
		o.logger.Debug("vector backend selected", "backend", s.backend.Name(), "build_mode", BuildMode)
	}

	return s, nil
}

// VectorBackend returns the discovery result captured at open time
func (s *SQLiteStorage) VectorBackend() (VectorBackend, error) {
	return s.backend, s.backendErr
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %w", types.ErrStorage, err)
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Paper operations

func (s *SQLiteStorage) upsertPaperWithQuerier(ctx context.Context, q querier, paper *Paper) error {
	if strings.TrimSpace(paper.PaperID) == "" {
		return types.ErrEmptyPaperID
	}
	authors, err := encodeList(paper.Authors)
	if err != nil {
		return err
	}
	categories, err := encodeList(paper.Categories)
	if err != nil {
		return err
	}

	// Replace-on-conflict for metadata; created_at survives re-index
	query := `
		INSERT INTO papers (paper_id, title, authors, abstract, categories, published_date,
		                    pdf_path, markdown_path, json_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(paper_id) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			abstract = excluded.abstract,
			categories = excluded.categories,
			published_date = excluded.published_date,
			pdf_path = excluded.pdf_path,
			markdown_path = excluded.markdown_path,
			json_path = excluded.json_path,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err = q.ExecContext(ctx, query,
		paper.PaperID, paper.Title, authors, paper.Abstract, categories, paper.PublishedDate,
		nullString(paper.PDFPath), nullString(paper.MarkdownPath), nullString(paper.JSONPath),
		now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert paper %s: %w", paper.PaperID, err)
	}
	paper.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertPaper(ctx context.Context, paper *Paper) error {
	return s.upsertPaperWithQuerier(ctx, s.querier(), paper)
}

func (s *SQLiteStorage) getPaperWithQuerier(ctx context.Context, q querier, paperID string) (*Paper, error) {
	query := `
		SELECT paper_id, title, authors, abstract, categories, published_date,
		       pdf_path, markdown_path, json_path, created_at, updated_at
		FROM papers
		WHERE paper_id = ?
	`
	var (
		paper                   Paper
		authors, categories     string
		pdf, markdown, jsonPath sql.NullString
	)
	err := q.QueryRowContext(ctx, query, paperID).Scan(
		&paper.PaperID, &paper.Title, &authors, &paper.Abstract, &categories, &paper.PublishedDate,
		&pdf, &markdown, &jsonPath, &paper.CreatedAt, &paper.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	paper.PDFPath, paper.MarkdownPath, paper.JSONPath = pdf.String, markdown.String, jsonPath.String
	if paper.Authors, err = decodeList(authors); err != nil {
		return nil, fmt.Errorf("paper %s authors: %w", paperID, err)
	}
	if paper.Categories, err = decodeList(categories); err != nil {
		return nil, fmt.Errorf("paper %s categories: %w", paperID, err)
	}
	return &paper, nil
}

func (s *SQLiteStorage) GetPaper(ctx context.Context, paperID string) (*Paper, error) {
	return s.getPaperWithQuerier(ctx, s.querier(), paperID)
}

// Chunk operations

// appendChunksWithQuerier inserts chunks in order and returns their new ids.
// Existing chunks of the paper are left in place.
func (s *SQLiteStorage) appendChunksWithQuerier(ctx context.Context, q querier, paperID string, chunks []*Chunk) ([]int64, error) {
	query := `
		INSERT INTO paper_chunks (paper_id, section_title, section_level, section_path,
		                          content, chunk_index, start_char, end_char, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			return nil, fmt.Errorf("chunk %d: %w", c.ChunkIndex, types.ErrEmptyContent)
		}
		path, err := encodeList(c.SectionPath)
		if err != nil {
			return nil, err
		}
		result, err := q.ExecContext(ctx, query,
			paperID, c.SectionTitle, c.SectionLevel, path,
			c.Content, c.ChunkIndex, c.StartChar, c.EndChar, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk %d of %s: %w", c.ChunkIndex, paperID, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		c.ID = id
		c.PaperID = paperID
		c.CreatedAt = now
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLiteStorage) AppendChunks(ctx context.Context, paperID string, chunks []*Chunk) ([]int64, error) {
	return s.appendChunksWithQuerier(ctx, s.querier(), paperID, chunks)
}

func (s *SQLiteStorage) writeLexicalEntriesWithQuerier(ctx context.Context, q querier, entries []LexicalEntry) error {
	query := `
		INSERT INTO chunks_fts (rowid, chunk_id, paper_id, title, content, section_title)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		if _, err := q.ExecContext(ctx, query, e.ChunkID, e.ChunkID, e.PaperID, e.Title, e.Content, e.SectionTitle); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", e.ChunkID, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) WriteLexicalEntries(ctx context.Context, entries []LexicalEntry) error {
	return s.writeLexicalEntriesWithQuerier(ctx, s.querier(), entries)
}

const chunkRecordColumns = `
	c.chunk_id, c.paper_id, c.section_title, c.section_level, c.section_path,
	c.content, c.chunk_index, c.start_char, c.end_char, c.created_at,
	p.title, p.authors
`

func scanChunkRecords(rows *sql.Rows) ([]*ChunkRecord, error) {
	records := make([]*ChunkRecord, 0)
	for rows.Next() {
		var (
			r             ChunkRecord
			path, authors string
		)
		err := rows.Scan(
			&r.ID, &r.PaperID, &r.SectionTitle, &r.SectionLevel, &path,
			&r.Content, &r.ChunkIndex, &r.StartChar, &r.EndChar, &r.CreatedAt,
			&r.PaperTitle, &authors,
		)
		if err != nil {
			return nil, err
		}
		if r.SectionPath, err = decodeList(path); err != nil {
			return nil, fmt.Errorf("chunk %d section_path: %w", r.ID, err)
		}
		if r.Authors, err = decodeList(authors); err != nil {
			return nil, fmt.Errorf("chunk %d authors: %w", r.ID, err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// fetchChunksByIDsWithQuerier loads chunks and returns them in the order of
// chunkIDs. Unknown ids are dropped.
func (s *SQLiteStorage) fetchChunksByIDsWithQuerier(ctx context.Context, q querier, chunkIDs []int64) ([]*ChunkRecord, error) {
	if len(chunkIDs) == 0 {
		return []*ChunkRecord{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunkIDs)), ",")
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	query := `SELECT ` + chunkRecordColumns + `
		FROM paper_chunks c
		INNER JOIN papers p ON p.paper_id = c.paper_id
		WHERE c.chunk_id IN (` + placeholders + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	found, err := scanChunkRecords(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*ChunkRecord, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	ordered := make([]*ChunkRecord, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

func (s *SQLiteStorage) FetchChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*ChunkRecord, error) {
	return s.fetchChunksByIDsWithQuerier(ctx, s.querier(), chunkIDs)
}

func (s *SQLiteStorage) fetchChunksByPaperWithQuerier(ctx context.Context, q querier, paperID string) ([]*ChunkRecord, error) {
	query := `SELECT ` + chunkRecordColumns + `
		FROM paper_chunks c
		INNER JOIN papers p ON p.paper_id = c.paper_id
		WHERE c.paper_id = ?
		ORDER BY c.chunk_index, c.chunk_id`
	rows, err := q.QueryContext(ctx, query, paperID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanChunkRecords(rows)
}

func (s *SQLiteStorage) FetchChunksByPaper(ctx context.Context, paperID string) ([]*ChunkRecord, error) {
	return s.fetchChunksByPaperWithQuerier(ctx, s.querier(), paperID)
}

// Embedding operations

func (s *SQLiteStorage) writeEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	fp := embedding.Fingerprint
	if fp.Provider == "" || fp.Model == "" {
		return fmt.Errorf("embedding for chunk %d has no model fingerprint", embedding.ChunkID)
	}
	if len(embedding.Vector) == 0 || len(embedding.Vector) != fp.Dimension {
		return fmt.Errorf("embedding for chunk %d has %d values, fingerprint says %d",
			embedding.ChunkID, len(embedding.Vector), fp.Dimension)
	}

	query := `
		INSERT OR REPLACE INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		embedding.ChunkID, serializeVector(embedding.Vector), fp.Dimension, fp.Provider, fp.Model, now)
	if err != nil {
		return fmt.Errorf("failed to store embedding for chunk %d: %w", embedding.ChunkID, err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) WriteEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.writeEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) embeddingFingerprintsWithQuerier(ctx context.Context, q querier) (map[Fingerprint]int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT provider, model, dimension, COUNT(*)
		FROM embeddings
		GROUP BY provider, model, dimension
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Fingerprint]int)
	for rows.Next() {
		var fp Fingerprint
		var n int
		if err := rows.Scan(&fp.Provider, &fp.Model, &fp.Dimension, &n); err != nil {
			return nil, err
		}
		counts[fp] = n
	}
	return counts, rows.Err()
}

// EmbeddingFingerprints counts stored embeddings per producing model
func (s *SQLiteStorage) EmbeddingFingerprints(ctx context.Context) (map[Fingerprint]int, error) {
	return s.embeddingFingerprintsWithQuerier(ctx, s.querier())
}

// Search operations

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, paperFilter string) ([]TextResult, error) {
	return searchText(ctx, s.querier(), query, limit, paperFilter)
}

func (s *SQLiteStorage) searchVectorWithQuerier(ctx context.Context, q querier, query VectorQuery) ([]VectorResult, error) {
	if s.backend == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoVectorBackend, s.backendErr)
	}
	results, err := s.backend.search(ctx, q, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrStorage, err)
	}
	return results, nil
}

func (s *SQLiteStorage) SearchVector(ctx context.Context, query VectorQuery) ([]VectorResult, error) {
	return s.searchVectorWithQuerier(ctx, s.querier(), query)
}

// Status operations

func countRows(ctx context.Context, q querier, table string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", types.ErrStorage, table, err)
	}
	return n, nil
}

func (s *SQLiteStorage) CountPapers(ctx context.Context) (int, error) {
	return countRows(ctx, s.querier(), "papers")
}

func (s *SQLiteStorage) CountChunks(ctx context.Context) (int, error) {
	return countRows(ctx, s.querier(), "paper_chunks")
}

func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int, error) {
	return countRows(ctx, s.querier(), "embeddings")
}

// DatabaseSizeMB reports page_count * page_size in megabytes
func (s *SQLiteStorage) DatabaseSizeMB(ctx context.Context) (float64, error) {
	return databaseSizeMB(ctx, s.querier())
}

func databaseSizeMB(ctx context.Context, q querier) (float64, error) {
	var pageCount, pageSize int64
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("%w: page_count: %w", types.ErrStorage, err)
	}
	if err := q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("%w: page_size: %w", types.ErrStorage, err)
	}
	return float64(pageCount*pageSize) / (1024 * 1024), nil
}

// Helpers

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
