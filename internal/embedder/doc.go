// Package embedder turns chunk and query text into unit-length vectors.
//
// Providers:
//   - local: offline feature hashing over words and word pairs, no network
//   - openai: the OpenAI embeddings API (or any compatible endpoint)
//   - ollama: a local Ollama server's /api/embeddings endpoint
//
// Remote providers are wrapped in a Guard that applies a requests-per-minute
// limiter, retries transient failures with exponential backoff and trips a
// circuit breaker when most recent calls fail.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local"}, logger)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Recurrent neural networks are used in sequence modeling.",
//	})
//
// # Fingerprints
//
// Every stored vector is tagged with Fingerprint(emb): provider, model and
// dimension. Vectors from a different model are never compared with the
// current one, so switching models degrades to lexical search for older
// papers instead of returning meaningless similarities.
//
// # Caching
//
// VectorCache is an LRU keyed by TextKey (SHA-256 of model and text). It
// stores and returns copies, so callers may modify vectors freely.
package embedder
