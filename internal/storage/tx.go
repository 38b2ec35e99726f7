package storage

import (
	"context"
	"database/sql"
	"errors"
)

// sqliteTx wraps a SQL transaction. Every method, reads included, goes
// through the transaction: the pool holds a single connection.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

func (t *sqliteTx) UpsertPaper(ctx context.Context, paper *Paper) error {
	return t.storage.upsertPaperWithQuerier(ctx, t.querier(), paper)
}

func (t *sqliteTx) GetPaper(ctx context.Context, paperID string) (*Paper, error) {
	return t.storage.getPaperWithQuerier(ctx, t.querier(), paperID)
}

func (t *sqliteTx) AppendChunks(ctx context.Context, paperID string, chunks []*Chunk) ([]int64, error) {
	return t.storage.appendChunksWithQuerier(ctx, t.querier(), paperID, chunks)
}

func (t *sqliteTx) WriteLexicalEntries(ctx context.Context, entries []LexicalEntry) error {
	return t.storage.writeLexicalEntriesWithQuerier(ctx, t.querier(), entries)
}

func (t *sqliteTx) FetchChunksByIDs(ctx context.Context, chunkIDs []int64) ([]*ChunkRecord, error) {
	return t.storage.fetchChunksByIDsWithQuerier(ctx, t.querier(), chunkIDs)
}

func (t *sqliteTx) FetchChunksByPaper(ctx context.Context, paperID string) ([]*ChunkRecord, error) {
	return t.storage.fetchChunksByPaperWithQuerier(ctx, t.querier(), paperID)
}

func (t *sqliteTx) WriteEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.writeEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) EmbeddingFingerprints(ctx context.Context) (map[Fingerprint]int, error) {
	return t.storage.embeddingFingerprintsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int, paperFilter string) ([]TextResult, error) {
	return searchText(ctx, t.querier(), query, limit, paperFilter)
}

func (t *sqliteTx) SearchVector(ctx context.Context, query VectorQuery) ([]VectorResult, error) {
	return t.storage.searchVectorWithQuerier(ctx, t.querier(), query)
}

func (t *sqliteTx) CountPapers(ctx context.Context) (int, error) {
	return countRows(ctx, t.querier(), "papers")
}

func (t *sqliteTx) CountChunks(ctx context.Context) (int, error) {
	return countRows(ctx, t.querier(), "paper_chunks")
}

func (t *sqliteTx) CountEmbeddings(ctx context.Context) (int, error) {
	return countRows(ctx, t.querier(), "embeddings")
}

func (t *sqliteTx) DatabaseSizeMB(ctx context.Context) (float64, error) {
	return databaseSizeMB(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite has no nested transactions
	return nil, errors.New("nested transactions not supported")
}
