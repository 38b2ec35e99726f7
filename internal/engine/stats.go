package engine

import (
	"context"

	"github.com/dshills/paperindex/pkg/types"
)

// Stats reports counts over the store. EmbeddingCount is only filled when
// semantic search is available; otherwise Reason says why it is not.
func (e *Engine) Stats(ctx context.Context) (*types.Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	papers, err := e.store.CountPapers(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := e.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	size, err := e.store.DatabaseSizeMB(ctx)
	if err != nil {
		return nil, err
	}

	stats := &types.Stats{
		PaperCount:       papers,
		ChunkCount:       chunks,
		EmbeddingEnabled: e.caps.Available,
		DatabaseSizeMB:   size,
	}

	if !e.caps.Available {
		stats.Reason = e.caps.Reason
		return stats, nil
	}

	embeddings, err := e.store.CountEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	stats.EmbeddingCount = &embeddings
	stats.Backend = e.caps.Backend
	stats.Model = e.caps.Fingerprint().String()
	return stats, nil
}
