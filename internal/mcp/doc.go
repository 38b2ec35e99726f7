// Package mcp implements the Model Context Protocol (MCP) server for paperindex.
//
// The server exposes five tools:
//   - semantic_search: rank paper chunks by BM25, vector similarity or both
//   - index_papers: index papers that were already split into chunks
//   - search_stats: paper, chunk and embedding counts
//   - get_paper_chunks: list one paper's chunks in order
//   - probe_capability: whether semantic search is available, and why not
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Basic Usage
//
//	paperindex serve
//
// # Tool: semantic_search
//
//	Request:
//	{
//	  "name": "semantic_search",
//	  "arguments": {
//	    "query": "recurrent neural networks",
//	    "search_type": "hybrid",
//	    "limit": 5,
//	    "paper_filter": "2401.00001",
//	    "alpha": 0.5
//	  }
//	}
//
//	Response:
//	{
//	  "query": "recurrent neural networks",
//	  "search_type": "hybrid",
//	  "effective_mode": "hybrid",
//	  "total_results": 1,
//	  "results": [
//	    {
//	      "rank": 1,
//	      "paper_id": "2401.00001",
//	      "paper_title": "Sequence Models",
//	      "section": "Introduction",
//	      "content_preview": "Recurrent neural networks are used in ..."
//	    }
//	  ]
//	}
//
// When semantic or hybrid search is requested but unavailable, results come
// from BM25 alone and the response carries a "fallback" note with the reason.
//
// # Tool: index_papers
//
// Takes {"papers": [PaperInput, ...]}. Papers are indexed one at a time; a
// paper that fails validation is reported and skipped. A storage failure
// aborts the call. Only one index_papers call runs at a time, a concurrent
// call fails with ErrorCodeIndexingInProgress.
//
// # Error Codes
//
//	-32602  ErrorCodeInvalidParams       bad or missing argument
//	-32603  ErrorCodeInternalError       storage failure
//	-32002  ErrorCodeIndexingInProgress  index_papers already running
//	-32004  ErrorCodeEmptyQuery          blank query
package mcp
