package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/paperindex/internal/capability"
	"github.com/dshills/paperindex/internal/embedder"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Lexical + semantic with RRF
	SearchModeSemantic SearchMode = "semantic" // Cosine similarity only
	SearchModeLexical  SearchMode = "lexical"  // bm25 only
)

// ParseMode accepts the canonical names plus bm25/keyword and vector
func ParseMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hybrid":
		return SearchModeHybrid, nil
	case "semantic", "vector":
		return SearchModeSemantic, nil
	case "lexical", "bm25", "keyword":
		return SearchModeLexical, nil
	default:
		return "", fmt.Errorf("%w: unknown search mode %q", types.ErrInvalidInput, s)
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Mode        SearchMode
	Limit       int
	PaperFilter string   // Exact paper_id; empty searches all papers
	Alpha       *float64 // Lexical weight for hybrid; nil uses the configured default
	UseCache    bool
	CacheTTL    time.Duration
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Hits          []types.Hit
	TotalResults  int
	Mode          SearchMode // As requested
	EffectiveMode SearchMode // Hybrid degrades to lexical without semantic search
	Fallback      string     // Why semantic search was unavailable; set when lexical results stood in
	Duration      time.Duration
	CacheHit      bool
}

// Config configures a Searcher. Zero values select defaults.
type Config struct {
	DefaultLimit int
	MaxLimit     int // Requests above this are truncated to it
	RRFConstant  float64
	DefaultAlpha *float64 // nil means 0.5; 0 is pure semantic
	CacheSize    int
	CacheTTL     time.Duration
	Logger       *slog.Logger
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.DefaultLimit <= 0 {
		out.DefaultLimit = 10
	}
	if out.MaxLimit <= 0 {
		out.MaxLimit = 100
	}
	if out.RRFConstant <= 0 {
		out.RRFConstant = DefaultRRFConstant
	}
	alpha := 0.5
	if out.DefaultAlpha != nil {
		alpha = min(max(*out.DefaultAlpha, 0), 1)
	}
	out.DefaultAlpha = &alpha
	if out.CacheSize <= 0 {
		out.CacheSize = 1000
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = time.Hour
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher dispatches requests to the lexical, semantic and fusion strategies
type Searcher struct {
	lexical  *Lexical
	semantic *Semantic
	fusion   *Fusion
	config   Config

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, emb embedder.Embedder, caps capability.Capability, config *Config) *Searcher {
	cfg := config.withDefaults()

	cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
	if err != nil {
		// This should never happen with a positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	lexical := NewLexical(store, cfg.Logger)
	semantic := NewSemantic(store, emb, caps, cfg.Logger)

	return &Searcher{
		lexical:  lexical,
		semantic: semantic,
		fusion:   NewFusion(lexical, semantic, store, cfg.RRFConstant, cfg.Logger),
		config:   cfg,
		cache:    cache,
	}
}

// Lexical returns the lexical strategy
func (s *Searcher) Lexical() *Lexical { return s.lexical }

// Semantic returns the semantic strategy
func (s *Searcher) Semantic() *Semantic { return s.semantic }

// Fusion returns the fusion strategy
func (s *Searcher) Fusion() *Fusion { return s.fusion }

// Search performs a search based on the request parameters. Only storage
// failures (types.ErrStorage) and unknown modes return errors; a blank query
// yields an empty response.
//
// Semantic and hybrid requests run as lexical when semantic search is
// unavailable. EffectiveMode and Fallback report the substitution.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Query) == "" {
		return &SearchResponse{
			Hits:          []types.Hit{},
			Mode:          req.Mode,
			EffectiveMode: req.Mode,
			Duration:      time.Since(startTime),
		}, nil
	}

	if req.UseCache {
		if cached, ok := s.checkCache(req); ok {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	response := &SearchResponse{Mode: req.Mode, EffectiveMode: req.Mode}
	if !s.semantic.Available() && req.Mode != SearchModeLexical {
		response.Fallback = s.semantic.Reason()
	}

	var err error
	switch {
	case req.Mode == SearchModeLexical:
		response.Hits = s.lexical.Query(ctx, req.Query, req.Limit, req.PaperFilter)
	case req.Mode == SearchModeSemantic && !s.semantic.Available():
		response.EffectiveMode = SearchModeLexical
		response.Hits = s.lexical.Query(ctx, req.Query, req.Limit, req.PaperFilter)
	case req.Mode == SearchModeSemantic:
		response.Hits, err = s.semantic.Query(ctx, req.Query, req.Limit, req.PaperFilter)
	default:
		var fused bool
		response.Hits, fused, err = s.fusion.Query(ctx, req.Query, req.Limit, *req.Alpha, req.PaperFilter)
		if !fused {
			response.EffectiveMode = SearchModeLexical
		}
	}
	if err != nil {
		return nil, err
	}

	response.TotalResults = len(response.Hits)
	response.Duration = time.Since(startTime)

	if req.UseCache && len(response.Hits) > 0 {
		s.storeInCache(req, response)
	}

	return response, nil
}

// validateRequest normalizes defaults and rejects unusable requests
func (s *Searcher) validateRequest(req *SearchRequest) error {
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode

	if req.Limit <= 0 {
		req.Limit = s.config.DefaultLimit
	}
	if req.Limit > s.config.MaxLimit {
		req.Limit = s.config.MaxLimit
	}

	alpha := *s.config.DefaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	alpha = min(max(alpha, 0), 1)
	req.Alpha = &alpha

	if req.CacheTTL <= 0 {
		req.CacheTTL = s.config.CacheTTL
	}

	return nil
}

// checkCache looks up cached search results
func (s *Searcher) checkCache(req SearchRequest) (*SearchResponse, bool) {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response, true
}

// storeInCache saves search results to cache
func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	hash := computeQueryHash(req)
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response; called after each index write
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Hits = make([]types.Hit, len(src.Hits))
	for i, hit := range src.Hits {
		dst.Hits[i] = hit
		dst.Hits[i].SectionPath = append([]string(nil), hit.SectionPath...)
		dst.Hits[i].Authors = append([]string(nil), hit.Authors...)
	}
	return &dst
}

// computeQueryHash computes a unique hash for a normalized search request
func computeQueryHash(req SearchRequest) [32]byte {
	alpha := 0.0
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	key := fmt.Sprintf("%s|%s|%d|%s|%.6f", req.Query, req.Mode, req.Limit, req.PaperFilter, alpha)
	return sha256.Sum256([]byte(key))
}
