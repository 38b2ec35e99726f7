package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/paperindex/internal/searcher"
	"github.com/dshills/paperindex/internal/storage"
	"github.com/dshills/paperindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const (
	previewLength = 200
	maxLimit      = 100
	maxErrors     = 5
)

// handleSemanticSearch handles the semantic_search tool invocation
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	searchType := getStringDefault(args, "search_type", "hybrid")
	mode, err := searcher.ParseMode(searchType)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_type", map[string]interface{}{
			"param":   "search_type",
			"value":   searchType,
			"allowed": []string{"hybrid", "semantic", "bm25"},
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > maxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	req := searcher.SearchRequest{
		Query:       query,
		Mode:        mode,
		Limit:       limit,
		PaperFilter: getStringDefault(args, "paper_filter", ""),
		UseCache:    true,
	}
	if alpha, ok := getFloat(args, "alpha"); ok {
		if alpha < 0 || alpha > 1 {
			return nil, newMCPError(ErrorCodeInvalidParams, "alpha must be between 0 and 1", map[string]interface{}{
				"param": "alpha",
				"value": alpha,
			})
		}
		req.Alpha = &alpha
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(searchResponse(query, searchType, resp))), nil
}

// searchResponse renders hits in the shape clients of the tool expect
func searchResponse(query, searchType string, resp *searcher.SearchResponse) map[string]interface{} {
	results := make([]map[string]interface{}, len(resp.Hits))
	for i, h := range resp.Hits {
		results[i] = map[string]interface{}{
			"rank":            h.Rank,
			"chunk_id":        h.ChunkID,
			"paper_id":        h.PaperID,
			"paper_title":     h.PaperTitle,
			"section":         h.SectionTitle,
			"section_path":    h.SectionPath,
			"score":           h.Score,
			"content_preview": preview(h.Content),
		}
	}

	out := map[string]interface{}{
		"query":          query,
		"search_type":    searchType,
		"effective_mode": string(resp.EffectiveMode),
		"total_results":  resp.TotalResults,
		"results":        results,
	}
	if resp.Fallback != "" {
		out["fallback"] = fmt.Sprintf("semantic search unavailable (%s); showing keyword results", resp.Fallback)
	}
	return out
}

// handleIndexPapers handles the index_papers tool invocation
func (s *Server) handleIndexPapers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	papers, err := decodePapers(args["papers"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "papers parameter is invalid", map[string]interface{}{
			"param":  "papers",
			"reason": err.Error(),
		})
	}

	if !s.indexLock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	defer s.indexLock.Release()

	start := time.Now()
	var (
		indexed, failed int
		chunks          int
		embeddings      int
		results         = make([]map[string]interface{}, 0, len(papers))
		errorMessages   []string
	)

	for _, p := range papers {
		report, err := s.engine.IndexPaper(ctx, p)
		if err != nil {
			if errors.Is(err, types.ErrStorage) {
				return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
					"paper_id": p.PaperID,
					"error":    err.Error(),
				})
			}
			failed++
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %v", p.PaperID, err))
			results = append(results, map[string]interface{}{
				"paper_id": p.PaperID,
				"indexed":  false,
				"error":    err.Error(),
			})
			continue
		}

		indexed++
		chunks += report.ChunksIndexed
		embeddings += report.EmbeddingsStored
		errorMessages = append(errorMessages, report.ErrorMessages...)
		results = append(results, map[string]interface{}{
			"paper_id":          p.PaperID,
			"indexed":           true,
			"run_id":            report.RunID.String(),
			"chunks_indexed":    report.ChunksIndexed,
			"embeddings_stored": report.EmbeddingsStored,
			"embeddings_failed": report.EmbeddingsFailed,
		})
	}

	response := map[string]interface{}{
		"papers_indexed":    indexed,
		"papers_failed":     failed,
		"chunks_indexed":    chunks,
		"embeddings_stored": embeddings,
		"papers":            results,
		"duration_ms":       time.Since(start).Milliseconds(),
	}
	if len(errorMessages) > 0 {
		if len(errorMessages) > maxErrors {
			response["errors"] = errorMessages[:maxErrors]
			response["error_count"] = len(errorMessages)
		} else {
			response["errors"] = errorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// decodePapers round-trips the loosely typed argument through JSON into PaperInput values
func decodePapers(raw interface{}) ([]types.PaperInput, error) {
	if raw == nil {
		return nil, errors.New("missing")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var papers []types.PaperInput
	if err := json.Unmarshal(data, &papers); err != nil {
		return nil, fmt.Errorf("expected an array of papers: %w", err)
	}
	if len(papers) == 0 {
		return nil, errors.New("at least one paper is required")
	}
	return papers, nil
}

// handleSearchStats handles the search_stats tool invocation
func (s *Server) handleSearchStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"paper_count":       stats.PaperCount,
		"chunk_count":       stats.ChunkCount,
		"embedding_enabled": stats.EmbeddingEnabled,
		"database_size_mb":  fmt.Sprintf("%.2f", stats.DatabaseSizeMB),
	}
	if stats.EmbeddingCount != nil {
		response["embedding_count"] = *stats.EmbeddingCount
		response["backend"] = stats.Backend
		response["model"] = stats.Model
	}
	if stats.Reason != "" {
		response["reason"] = stats.Reason
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetPaperChunks handles the get_paper_chunks tool invocation
func (s *Server) handleGetPaperChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	paperID, _ := args["paper_id"].(string)
	if strings.TrimSpace(paperID) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "paper_id parameter is required", map[string]interface{}{
			"param":  "paper_id",
			"reason": "missing or empty",
		})
	}

	chunks, err := s.engine.PaperChunks(ctx, paperID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load chunks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"paper_id":     paperID,
		"total_chunks": len(chunks),
		"chunks":       chunks,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleProbeCapability handles the probe_capability tool invocation
func (s *Server) handleProbeCapability(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caps := s.engine.Capability()

	response := map[string]interface{}{
		"available":  caps.Available,
		"build_mode": storage.BuildMode,
	}
	if caps.Available {
		response["backend"] = caps.Backend
		response["provider"] = caps.Provider
		response["model"] = caps.Model
		response["dimension"] = caps.Dimension
	} else {
		response["reason"] = caps.Reason
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// preview truncates content to previewLength runes, marking the cut with "..."
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getFloat extracts an optional number parameter
func getFloat(args map[string]interface{}, key string) (float64, bool) {
	switch val := args[key].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}
