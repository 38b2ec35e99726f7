package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/paperindex/internal/mcp"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server for AI assistant integration.

The server speaks JSON-RPC over stdin/stdout; logs go to stderr.

Client configuration:
  {
    "mcpServers": {
      "paperindex": {
        "command": "/path/to/paperindex",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, logger, err := opts.openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			srv := mcp.NewServer(eng, logger)
			err = srv.ServeIO(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				logger.Info("mcp server stopped")
				return nil
			}
			return err
		},
	}
}
