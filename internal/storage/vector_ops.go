package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dshills/paperindex/pkg/types"
)

// searchText performs bm25 full-text search using FTS5.
// Results keep the backend's native order: ascending bm25, lower is better.
func searchText(ctx context.Context, q querier, query string, limit int, paperFilter string) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" || limit <= 0 {
		return []TextResult{}, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT rowid, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		AND (? = '' OR paper_id = ?)
		ORDER BY score ASC, rowid ASC
		LIMIT ?
	`, sanitized, paperFilter, paperFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: fts match %q: %v", types.ErrQuery, sanitized, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var r TextResult
		if err := rows.Scan(&r.ChunkID, &r.BM25Score); err != nil {
			return nil, fmt.Errorf("%w: scan fts row: %v", types.ErrQuery, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: fts match %q: %v", types.ErrQuery, sanitized, err)
	}
	return results, nil
}

// ftsOperators are the FTS5 keywords that change query meaning (case sensitive)
var ftsOperators = map[string]bool{
	"AND":  true,
	"OR":   true,
	"NOT":  true,
	"NEAR": true,
}

// sanitizeFTSQuery turns free text into a safe FTS5 MATCH expression.
// Quote characters are stripped. If any term carries syntax characters or is
// an operator keyword, every term is wrapped in double quotes so FTS5 treats
// it as a plain phrase. Terms without any letter or digit are dropped.
func sanitizeFTSQuery(query string) string {
	cleaned := strings.NewReplacer(`"`, " ", `'`, " ").Replace(query)

	terms := make([]string, 0, 8)
	needsQuoting := false
	for _, term := range strings.Fields(cleaned) {
		if !strings.ContainsFunc(term, isWordRune) {
			needsQuoting = true
			continue
		}
		if ftsOperators[term] || strings.ContainsFunc(term, isSyntaxRune) {
			needsQuoting = true
		}
		terms = append(terms, term)
	}

	if len(terms) == 0 {
		return ""
	}
	if !needsQuoting {
		return strings.Join(terms, " ")
	}

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSyntaxRune(r rune) bool {
	return !isWordRune(r) && r != '_'
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var chunkID int64
		var vectorBlob []byte
		if err := rows.Scan(&chunkID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		candidates = append(candidates, candidate{chunkID: chunkID, score: cosineSimilarity(queryVector, vector)})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates VectorResult slice from sorted candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 {
		return []VectorResult{}
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:         candidates[i].chunkID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors.
// The result is clamped to [-1, 1] to absorb float rounding.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return clampSimilarity(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func clampSimilarity(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID int64
	score   float64
}

// sortCandidates orders by score descending, then chunk id ascending
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunkID < candidates[j].chunkID
	})
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
