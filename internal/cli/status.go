package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/paperindex/internal/storage"
)

func newStatsCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, err := opts.openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			stats, err := eng.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, stats)
			}

			fmt.Fprintf(out, "Papers:      %d\n", stats.PaperCount)
			fmt.Fprintf(out, "Chunks:      %d\n", stats.ChunkCount)
			if stats.EmbeddingCount != nil {
				fmt.Fprintf(out, "Embeddings:  %d (%s, %s)\n", *stats.EmbeddingCount, stats.Model, stats.Backend)
			} else {
				fmt.Fprintf(out, "Embeddings:  disabled (%s)\n", stats.Reason)
			}
			fmt.Fprintf(out, "Database:    %.2f MB\n", stats.DatabaseSizeMB)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newChunksCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "chunks PAPER_ID",
		Short: "List the stored chunks of a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, err := opts.openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			chunks, err := eng.PaperChunks(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, chunks)
			}
			if len(chunks) == 0 {
				fmt.Fprintf(out, "No chunks stored for %s.\n", args[0])
				return nil
			}
			for _, c := range chunks {
				fmt.Fprintf(out, "#%d [%d] %s\n", c.ChunkIndex, c.ChunkID, c.SectionTitle)
				fmt.Fprintf(out, "    %s\n", snippet(c.Content))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

type probeOutput struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
	BuildMode string `json:"build_mode"`
}

func newProbeCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check whether semantic search is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, _, err := opts.openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			caps := eng.Capability()
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, probeOutput{
					Available: caps.Available,
					Reason:    caps.Reason,
					Backend:   caps.Backend,
					Provider:  caps.Provider,
					Model:     caps.Model,
					Dimension: caps.Dimension,
					BuildMode: storage.BuildMode,
				})
			}

			fmt.Fprintf(out, "Semantic search: %s\n", caps)
			fmt.Fprintf(out, "Build mode:      %s (driver %s)\n", storage.BuildMode, storage.DriverName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
