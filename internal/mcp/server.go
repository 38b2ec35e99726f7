package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/paperindex/internal/engine"
	"github.com/dshills/paperindex/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "paperindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server exposes an engine as MCP tools
type Server struct {
	mcp    *server.MCPServer
	engine *engine.Engine
	logger *slog.Logger

	// indexLock rejects a second index_papers call while one is running
	indexLock indexer.IndexLock
}

// NewServer creates a new MCP server instance around eng. The caller keeps
// ownership of eng and closes it after Serve returns.
func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
		),
		engine: eng,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdin/stdout and blocks until ctx is
// cancelled or the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO runs the MCP server over the given streams
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening", "name", ServerName, "version", ServerVersion)
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(indexPapersTool(), s.handleIndexPapers)
	s.mcp.AddTool(searchStatsTool(), s.handleSearchStats)
	s.mcp.AddTool(getPaperChunksTool(), s.handleGetPaperChunks)
	s.mcp.AddTool(probeCapabilityTool(), s.handleProbeCapability)
}
