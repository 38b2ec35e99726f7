package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/paperindex/pkg/types"
)

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Index chunked papers from JSON files",
		Long: `Reads papers produced by a chunker and indexes them.

Each file holds one paper object or an array of them:

  {
    "paper_id": "2401.00001",
    "metadata": {"title": "...", "authors": ["..."]},
    "chunks": [{"section_title": "Introduction", "content": "..."}]
  }

Use "-" to read from stdin. Re-indexing a paper appends a new set of chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var papers []types.PaperInput
			for _, path := range args {
				batch, err := readPapers(cmd, path)
				if err != nil {
					return err
				}
				papers = append(papers, batch...)
			}

			eng, _, err := opts.openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			summaries := make([]indexSummary, 0, len(papers))
			var failed int
			for _, p := range papers {
				report, err := eng.IndexPaper(cmd.Context(), p)
				if err != nil {
					if errors.Is(err, types.ErrStorage) {
						return fmt.Errorf("index %s: %w", p.PaperID, err)
					}
					failed++
					summaries = append(summaries, indexSummary{PaperID: p.PaperID, Error: err.Error()})
					continue
				}
				summaries = append(summaries, indexSummary{
					PaperID:          p.PaperID,
					RunID:            report.RunID.String(),
					ChunksIndexed:    report.ChunksIndexed,
					EmbeddingsStored: report.EmbeddingsStored,
					EmbeddingsFailed: report.EmbeddingsFailed,
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, summaries); err != nil {
					return err
				}
			} else {
				for _, s := range summaries {
					if s.Error != "" {
						fmt.Fprintf(out, "  FAILED %s: %s\n", s.PaperID, s.Error)
						continue
					}
					fmt.Fprintf(out, "  %s: %d chunks, %d embeddings", s.PaperID, s.ChunksIndexed, s.EmbeddingsStored)
					if s.EmbeddingsFailed > 0 {
						fmt.Fprintf(out, " (%d failed)", s.EmbeddingsFailed)
					}
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Indexed %d of %d papers\n", len(papers)-failed, len(papers))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d papers failed", failed, len(papers))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

type indexSummary struct {
	PaperID          string `json:"paper_id"`
	RunID            string `json:"run_id,omitempty"`
	ChunksIndexed    int    `json:"chunks_indexed"`
	EmbeddingsStored int    `json:"embeddings_stored"`
	EmbeddingsFailed int    `json:"embeddings_failed"`
	Error            string `json:"error,omitempty"`
}

// readPapers decodes one paper or an array of papers from path
func readPapers(cmd *cobra.Command, path string) ([]types.PaperInput, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w: empty input", path, types.ErrInvalidInput)
	}

	if data[0] == '[' {
		var papers []types.PaperInput
		if err := json.Unmarshal(data, &papers); err != nil {
			return nil, fmt.Errorf("%s: %w: %w", path, types.ErrInvalidInput, err)
		}
		return papers, nil
	}

	var paper types.PaperInput
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, types.ErrInvalidInput, err)
	}
	return []types.PaperInput{paper}, nil
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
