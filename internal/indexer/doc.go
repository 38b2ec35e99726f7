// Package indexer writes papers and their chunks into storage.
//
// IndexPaper runs three steps:
//
//  1. Validate: paper id and every chunk's content must be non-blank
//  2. Encode: when semantic search is available, chunk texts are embedded
//     concurrently (bounded by Config.Workers); a failed chunk is logged and
//     counted, never fatal
//  3. Store: one transaction upserts the paper, appends the chunks with
//     chunk_index set to input position, writes their lexical entries and
//     the embeddings that succeeded
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, capability, &indexer.Config{Workers: 4})
//	report, err := idx.IndexPaper(ctx, "2401.01234", meta, chunks)
//	if err != nil {
//	    return err // wraps types.ErrInvalidInput or types.ErrIndexing
//	}
//	fmt.Printf("%s: %d chunks, %d embeddings\n", report.RunID, report.ChunksIndexed, report.EmbeddingsStored)
//
// # Re-indexing
//
// There is no incremental mode. Indexing the same paper again replaces its
// metadata and appends a fresh set of chunks next to the old ones, so chunk
// counts grow with every call.
//
// # Concurrency
//
// The indexer does not serialize writers itself; callers (the engine) hold a
// write lock for the duration of IndexPaper. IndexLock is available for
// callers that prefer to reject a concurrent request outright.
package indexer
