// Package searcher ranks indexed chunks for a text query.
//
// Three strategies, each usable on its own:
//   - Lexical: FTS5 bm25, ascending (lower is better); errors become an empty list
//   - Semantic: cosine similarity against stored embeddings with the active
//     fingerprint; empty when semantic search is unavailable
//   - Fusion: Reciprocal Rank Fusion of the two, falling back to Lexical
//     unchanged when semantic search is unavailable
//
// Searcher is the facade used by the engine. It validates requests, maps mode
// aliases (bm25 and keyword to lexical, vector to semantic) and keeps an LRU
// cache of responses that the engine purges after every index write. Limits
// above Config.MaxLimit are truncated to it. A blank query gives an empty
// response. When semantic search is unavailable, semantic and hybrid requests
// are answered lexically and the response says so in EffectiveMode and Fallback.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb, caps, &searcher.Config{Logger: logger})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "recurrent neural networks",
//	    Limit: 10,
//	    Mode:  searcher.SearchModeHybrid,
//	})
//	for _, hit := range resp.Hits {
//	    fmt.Printf("[%d] %s / %s (%.4f)\n", hit.Rank, hit.PaperTitle, hit.SectionTitle, hit.Score)
//	}
//
// # Fusion
//
// Both sub-queries fetch 2*limit candidates and run concurrently. For every
// chunk in either list:
//
//	score = alpha/(k + lexicalRank) + (1-alpha)/(k + semanticRank)
//
// A chunk missing from one list takes rank 2*limit+1 there. k defaults to 60.
// alpha = 1 reproduces the lexical order and alpha = 0 the semantic order.
// FuseRanks is the pure form of this computation.
//
// Scores are strategy specific: raw bm25, cosine similarity, or fused score.
// They are not comparable across modes.
package searcher
