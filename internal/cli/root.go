// Package cli implements the paperindex command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/paperindex/internal/config"
	"github.com/dshills/paperindex/internal/engine"
	"github.com/dshills/paperindex/internal/logging"
)

// version is set at build time with -ldflags "-X .../internal/cli.version=..."
var version = "dev"

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	logFormat  string
	backend    string
	provider   string
}

// NewRootCmd builds the full command tree
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "paperindex",
		Short: "Index and search chunks of research papers",
		Long: `paperindex stores pre-chunked papers in SQLite and answers keyword (BM25),
semantic (vector similarity) and hybrid (reciprocal rank fusion) queries.

Settings come from ~/.paperindex/config.toml, a .env file and PAPERINDEX_*
environment variables. Flags override all of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.paperindex/config.toml)")
	flags.StringVar(&opts.dbPath, "db", "", "database path")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.backend, "vector-backend", "", "vector backend: auto, sqlite-vec, bruteforce or none")
	flags.StringVar(&opts.provider, "provider", "", "embedding provider: local, openai, ollama or none")

	root.AddCommand(
		newIndexCmd(opts),
		newSearchCmd(opts),
		newStatsCmd(opts),
		newChunksCmd(opts),
		newProbeCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with ctx
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig resolves configuration and applies flag overrides
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.backend != "" {
		cfg.VectorBackend = o.backend
	}
	if o.provider != "" {
		cfg.Embedding.Provider = o.provider
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger writes to the command's stderr so stdout stays clean for results
// and the MCP protocol
func (o *globalOptions) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}

// openEngine loads configuration and opens the engine. Callers close it.
func (o *globalOptions) openEngine(cmd *cobra.Command) (*engine.Engine, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger(cmd, cfg)

	eng, err := engine.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open index: %w", err)
	}
	return eng, logger, nil
}
