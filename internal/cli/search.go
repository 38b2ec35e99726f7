package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/paperindex/internal/searcher"
	"github.com/dshills/paperindex/pkg/types"
)

const snippetLength = 200

type searchOptions struct {
	searchType  string
	paperFilter string
	limit       int
	alpha       float64
	asJSON      bool
	noCache     bool
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	so := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed papers",
		Long: `Searches indexed paper chunks.

  --type bm25      keyword ranking (FTS5 bm25)
  --type semantic  cosine similarity of embeddings
  --type hybrid    reciprocal rank fusion of both (default)

Hybrid and semantic searches are answered with BM25 when embeddings are
unavailable; the output notes the substitution.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(args[0]) == "" {
				return types.ErrEmptyQuery
			}
			mode, err := searcher.ParseMode(so.searchType)
			if err != nil {
				return err
			}

			req := searcher.SearchRequest{
				Query:       args[0],
				Mode:        mode,
				Limit:       so.limit,
				PaperFilter: so.paperFilter,
				UseCache:    !so.noCache,
			}
			if cmd.Flags().Changed("alpha") {
				if so.alpha < 0 || so.alpha > 1 {
					return fmt.Errorf("--alpha must be between 0 and 1, got %g", so.alpha)
				}
				req.Alpha = &so.alpha
			}

			eng, _, err := opts.openEngine(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			resp, err := eng.Search(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if so.asJSON {
				return printJSON(cmd.OutOrStdout(), searchOutput(args[0], so.searchType, resp))
			}
			return printSearchTable(cmd.OutOrStdout(), resp)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&so.searchType, "type", "t", "hybrid", "search type: bm25, semantic or hybrid")
	f.StringVar(&so.searchType, "mode", "hybrid", "alias for --type")
	f.StringVar(&so.paperFilter, "paper-filter", "", "restrict results to one paper_id")
	f.IntVarP(&so.limit, "limit", "n", 10, "maximum number of results")
	f.Float64Var(&so.alpha, "alpha", 0.5, "keyword weight for hybrid search (0-1)")
	f.BoolVar(&so.asJSON, "json", false, "output results as JSON")
	f.BoolVar(&so.noCache, "no-cache", false, "bypass the query cache")
	return cmd
}

type searchResult struct {
	Rank        int      `json:"rank"`
	ChunkID     int64    `json:"chunk_id"`
	PaperID     string   `json:"paper_id"`
	PaperTitle  string   `json:"paper_title"`
	Section     string   `json:"section"`
	SectionPath []string `json:"section_path"`
	Score       float64  `json:"score"`
	Preview     string   `json:"content_preview"`
}

type searchJSON struct {
	Query         string         `json:"query"`
	SearchType    string         `json:"search_type"`
	EffectiveMode string         `json:"effective_mode"`
	TotalResults  int            `json:"total_results"`
	Results       []searchResult `json:"results"`
	Fallback      string         `json:"fallback,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
}

func searchOutput(query, searchType string, resp *searcher.SearchResponse) searchJSON {
	out := searchJSON{
		Query:         query,
		SearchType:    searchType,
		EffectiveMode: string(resp.EffectiveMode),
		TotalResults:  resp.TotalResults,
		Results:       make([]searchResult, len(resp.Hits)),
		Fallback:      resp.Fallback,
		DurationMS:    resp.Duration.Milliseconds(),
	}
	for i, h := range resp.Hits {
		out.Results[i] = searchResult{
			Rank:        h.Rank,
			ChunkID:     h.ChunkID,
			PaperID:     h.PaperID,
			PaperTitle:  h.PaperTitle,
			Section:     h.SectionTitle,
			SectionPath: h.SectionPath,
			Score:       h.Score,
			Preview:     snippet(h.Content),
		}
	}
	return out
}

func printSearchTable(w io.Writer, resp *searcher.SearchResponse) error {
	if resp.Fallback != "" {
		fmt.Fprintf(w, "Note: semantic search unavailable (%s); showing keyword results.\n\n", resp.Fallback)
	}
	if len(resp.Hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "Results (%s):\n\n", resp.EffectiveMode)
	for _, h := range resp.Hits {
		title := h.PaperTitle
		if title == "" {
			title = h.PaperID
		}
		fmt.Fprintf(w, "  [%d] %s (%s) %.4f\n", h.Rank, title, h.PaperID, h.Score)
		if len(h.SectionPath) > 0 {
			fmt.Fprintf(w, "      %s\n", strings.Join(h.SectionPath, " > "))
		} else if h.SectionTitle != "" {
			fmt.Fprintf(w, "      %s\n", h.SectionTitle)
		}
		fmt.Fprintf(w, "      %s\n\n", snippet(h.Content))
	}
	return nil
}

// snippet flattens whitespace and cuts content to snippetLength runes
func snippet(content string) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= snippetLength {
		return flat
	}
	return string(runes[:snippetLength]) + "..."
}
