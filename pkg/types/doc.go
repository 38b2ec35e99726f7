// Package types provides shared type definitions for the paperindex engine.
//
// These types cross package boundaries: the Chunker collaborator produces
// PaperInput values, the engine turns them into stored rows, and search
// returns Hit values to whatever presents them.
//
// # Core Types
//
// PaperMetadata carries everything known about a paper apart from its text:
//
//	meta := types.PaperMetadata{
//	    Title:      "Sequence Modeling with RNNs",
//	    Authors:    []string{"A. Author", "B. Author"},
//	    Categories: []string{"cs.LG"},
//	}
//
// ChunkInput is one already-segmented slice of a paper's text. Only Content
// is required:
//
//	chunk := types.ChunkInput{
//	    SectionTitle: "Introduction",
//	    SectionPath:  []string{"Introduction"},
//	    Content:      "Recurrent neural networks are used in sequence modeling.",
//	}
//
// Hit is a ranked search result. Score is strategy specific: raw bm25 for
// lexical search, cosine similarity for semantic search, and the fused
// reciprocal rank score for hybrid search.
//
// # Errors
//
// Errors returned by the engine wrap one of the sentinel values declared in
// errors.go so callers can classify them with errors.Is.
package types
