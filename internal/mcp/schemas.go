package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// semanticSearchTool returns the tool definition for semantic_search
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Search indexed paper chunks by keyword (BM25), meaning (vector similarity) or both fused with reciprocal rank fusion",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"search_type": map[string]interface{}{
					"type":        "string",
					"description": "Ranking strategy: hybrid (fused), semantic (vector only) or bm25 (keyword only)",
					"enum":        []string{"hybrid", "semantic", "bm25"},
					"default":     "hybrid",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"paper_filter": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to one paper_id",
				},
				"alpha": map[string]interface{}{
					"type":        "number",
					"description": "Weight of the keyword ranking in hybrid search (0.0-1.0)",
					"default":     0.5,
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexPapersTool returns the tool definition for index_papers
func indexPapersTool() mcp.Tool {
	chunk := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"section_title": map[string]interface{}{"type": "string"},
			"section_level": map[string]interface{}{"type": "integer", "minimum": 0},
			"section_path": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"content":    map[string]interface{}{"type": "string"},
			"start_char": map[string]interface{}{"type": "integer"},
			"end_char":   map[string]interface{}{"type": "integer"},
		},
		"required": []string{"content"},
	}

	return mcp.Tool{
		Name:        "index_papers",
		Description: "Index pre-chunked papers. Re-indexing a paper replaces its metadata and appends a new set of chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"papers": map[string]interface{}{
					"type":        "array",
					"description": "Papers with metadata and ordered chunks",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"paper_id": map[string]interface{}{
								"type":        "string",
								"description": "Stable paper identifier, e.g. an arXiv id",
							},
							"metadata": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"title":          map[string]interface{}{"type": "string"},
									"authors":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
									"abstract":       map[string]interface{}{"type": "string"},
									"categories":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
									"published_date": map[string]interface{}{"type": "string"},
									"pdf_path":       map[string]interface{}{"type": "string"},
									"markdown_path":  map[string]interface{}{"type": "string"},
									"json_path":      map[string]interface{}{"type": "string"},
								},
							},
							"chunks": map[string]interface{}{
								"type":  "array",
								"items": chunk,
							},
						},
						"required": []string{"paper_id", "chunks"},
					},
				},
			},
			Required: []string{"papers"},
		},
	}
}

// searchStatsTool returns the tool definition for search_stats
func searchStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_stats",
		Description: "Report paper, chunk and embedding counts and the database size",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getPaperChunksTool returns the tool definition for get_paper_chunks
func getPaperChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_paper_chunks",
		Description: "List the stored chunks of one paper in chunk order",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paper_id": map[string]interface{}{
					"type":        "string",
					"description": "Paper identifier",
				},
			},
			Required: []string{"paper_id"},
		},
	}
}

// probeCapabilityTool returns the tool definition for probe_capability
func probeCapabilityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "probe_capability",
		Description: "Report whether semantic search is available and, if not, why",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
