package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Vector backend names
const (
	BackendAuto       = "auto"
	BackendNative     = "sqlite-vec"
	BackendBruteForce = "bruteforce"
	BackendNone       = "none"
)

var (
	// ErrBackendDisabled is returned by discovery when vector search is switched off
	ErrBackendDisabled = errors.New("vector backend disabled")
	// ErrBackendUnavailable is returned when the requested backend cannot run here
	ErrBackendUnavailable = errors.New("vector backend unavailable")
	// ErrNoVectorBackend is returned by SearchVector when discovery failed
	ErrNoVectorBackend = errors.New("no vector backend")
)

// VectorBackend scores stored embeddings against a query vector.
// Both implementations scan every candidate row; there is no approximate index.
type VectorBackend interface {
	// Name identifies the backend in logs and stats
	Name() string
	search(ctx context.Context, q querier, query VectorQuery) ([]VectorResult, error)
}

// DiscoverVectorBackend is the single entry point for finding a usable vector
// backend. preference is one of auto, sqlite-vec, bruteforce or none.
// auto prefers the native extension and falls back to the pure Go scan.
func DiscoverVectorBackend(ctx context.Context, db *sql.DB, preference string) (VectorBackend, error) {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "", BackendAuto:
		if b, err := probeNative(ctx, db); err == nil {
			return b, nil
		}
		return bruteForceBackend{}, nil
	case BackendNative, "native":
		return probeNative(ctx, db)
	case BackendBruteForce:
		return bruteForceBackend{}, nil
	case BackendNone, "off", "disabled":
		return nil, ErrBackendDisabled
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrBackendUnavailable, preference)
	}
}

func probeNative(ctx context.Context, db *sql.DB) (VectorBackend, error) {
	if !VectorExtensionAvailable {
		return nil, fmt.Errorf("%w: built without sqlite_vec tag (build mode %s)", ErrBackendUnavailable, BuildMode)
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&version); err != nil {
		return nil, fmt.Errorf("%w: sqlite-vec not loaded: %v", ErrBackendUnavailable, err)
	}
	return nativeBackend{version: version}, nil
}

// bruteForceBackend decodes every candidate blob and computes cosine in Go
type bruteForceBackend struct{}

func (bruteForceBackend) Name() string { return BackendBruteForce }

func (bruteForceBackend) search(ctx context.Context, q querier, query VectorQuery) ([]VectorResult, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.chunk_id, e.vector
		FROM embeddings e
		INNER JOIN paper_chunks c ON c.chunk_id = e.chunk_id
		WHERE e.provider = ? AND e.model = ? AND e.dimension = ?
		AND (? = '' OR c.paper_id = ?)
	`, query.Fingerprint.Provider, query.Fingerprint.Model, query.Fingerprint.Dimension,
		query.PaperFilter, query.PaperFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, query.Vector)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, query.Limit), nil
}

// nativeBackend lets sqlite-vec compute the distance inside the query
type nativeBackend struct {
	version string
}

func (nativeBackend) Name() string { return BackendNative }

func (b nativeBackend) search(ctx context.Context, q querier, query VectorQuery) ([]VectorResult, error) {
	if query.Limit <= 0 {
		return []VectorResult{}, nil
	}

	// vec_distance_cosine returns a distance; similarity = 1 - distance
	rows, err := q.QueryContext(ctx, `
		SELECT e.chunk_id, 1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM embeddings e
		INNER JOIN paper_chunks c ON c.chunk_id = e.chunk_id
		WHERE e.provider = ? AND e.model = ? AND e.dimension = ?
		AND (? = '' OR c.paper_id = ?)
		ORDER BY similarity DESC, e.chunk_id ASC
		LIMIT ?
	`, serializeVector(query.Vector),
		query.Fingerprint.Provider, query.Fingerprint.Model, query.Fingerprint.Dimension,
		query.PaperFilter, query.PaperFilter, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search (sqlite-vec %s): %w", b.version, err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, query.Limit)
	for rows.Next() {
		var r VectorResult
		if err := rows.Scan(&r.ChunkID, &r.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.SimilarityScore = clampSimilarity(r.SimilarityScore)
		results = append(results, r)
	}
	return results, rows.Err()
}
