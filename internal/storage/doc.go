// Package storage provides SQLite-based persistence for indexed papers.
//
// The storage layer manages:
//   - Paper metadata, one row per paper id
//   - Section-scoped chunks with database-assigned ids
//   - The FTS5 lexical index over chunk text
//   - Embedding vectors tagged with the model that produced them
//
// # Database Schema
//
// Tables:
//   - papers: metadata; authors and categories are JSON arrays
//   - paper_chunks: chunk text, section path and character offsets
//   - chunks_fts: FTS5 table, rowid equals chunk_id, porter unicode61 tokenizer
//   - embeddings: little-endian float32 blob plus provider, model and dimension
//   - schema_version: applied migrations
//
// The lexical index is written explicitly by the indexer; there are no
// triggers. Re-indexing a paper appends new chunks and leaves the old ones.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("papers.db", storage.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	_ = tx.UpsertPaper(ctx, paper)
//	ids, _ := tx.AppendChunks(ctx, paper.PaperID, chunks)
//	_ = tx.WriteLexicalEntries(ctx, entries)
//	return tx.Commit()
//
// The pool holds a single connection, so reads made while a transaction is
// open must go through the transaction.
//
// # Search
//
// SearchText returns raw bm25 scores in ascending order (lower is better).
// Free text is sanitized first: quote characters are stripped and terms that
// carry FTS5 syntax are quoted, so user input never reaches the parser as an
// expression.
//
// SearchVector compares only embeddings whose fingerprint matches the query,
// using whichever VectorBackend DiscoverVectorBackend selected at open time.
// Scores are cosine similarity clamped to [-1, 1], ties broken by chunk id.
//
// # Build Tags
//
// Pure Go build (default, or purego tag):
//
//   - Uses modernc.org/sqlite
//   - Vector search is a brute-force cosine scan in Go
//
// CGO build (sqlite_vec tag):
//
//   - Uses github.com/mattn/go-sqlite3 with the sqlite-vec extension
//   - Distance is computed in SQL with vec_distance_cosine
//
// Build it with:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec"
package storage
