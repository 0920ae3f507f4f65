package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/filter"
)

const ruleWidth = 60

// searchOptions holds CLI flags for search.
type searchOptions struct {
	categories []string
	yearMin    string
	yearMax    string
	tiers      []string
	topK       int
	full       bool
	boolean    bool
	format     string
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the research corpus",
		Long: `Rank research documents against a keyword query with BM25.

Facet flags narrow the candidates before ranking. With an empty query
and at least one facet, matching documents are listed in ID order.

Examples:
  navigator search "flexible mesh electrodes"
  navigator search "biocompatibility" --category materials --year-min 2020
  navigator search "" --tier critical --top-k 20
  navigator search "flexible AND electrode NOT rigid" --boolean`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, global, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.categories, "category", nil, "Restrict to category (repeatable or comma separated)")
	cmd.Flags().StringVar(&opts.yearMin, "year-min", "", "Earliest publication year")
	cmd.Flags().StringVar(&opts.yearMax, "year-max", "", "Latest publication year")
	cmd.Flags().StringSliceVar(&opts.tiers, "tier", nil, "Restrict to relevance tier: medium, high, critical")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 5, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.full, "full", false, "Print the matched text of each result")
	cmd.Flags().BoolVar(&opts.boolean, "boolean", false, "Treat upper-case AND and NOT as operators")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, global *globalOptions, query string, opts searchOptions) error {
	spec, err := filter.Parse(opts.categories, opts.yearMin, opts.yearMax, opts.tiers)
	if err != nil {
		return err
	}
	if strings.TrimSpace(query) == "" && spec.IsZero() {
		return fmt.Errorf("query is empty and no filter was given")
	}
	if opts.topK <= 0 {
		return fmt.Errorf("--top-k must be positive, got %d", opts.topK)
	}

	ctx := commandContext(cmd)
	nav, err := open(ctx, global, false)
	if err != nil {
		return err
	}
	defer nav.Close()

	res, err := nav.Executor.Search(ctx, executor.Request{Query: query, Filter: spec, TopK: opts.topK, Boolean: opts.boolean})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text":
		formatResults(out, res.Results, opts.full)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", opts.format)
	}
}

// formatResults prints hits in rank order, numbered from 1. Chunks are shown
// 1-based.
func formatResults(w io.Writer, hits []executor.Hit, full bool) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, hit := range hits {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
		fmt.Fprintf(w, "Result %d (Score: %.2f)\n", i+1, hit.Score)
		if hit.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", hit.Source)
		}
		fmt.Fprintf(w, "Title: %s\n", hit.Title)
		fmt.Fprintf(w, "Chunk: %d\n", hit.ChunkIndex+1)
		if facets := describeFacets(hit); facets != "" {
			fmt.Fprintf(w, "Facets: %s\n", facets)
		}
		if full {
			fmt.Fprintf(w, "\nContent:\n%s\n", hit.Text)
		}
	}
}

func describeFacets(hit executor.Hit) string {
	var parts []string
	if hit.Year > 0 {
		parts = append(parts, fmt.Sprintf("year=%d", hit.Year))
	}
	if hit.Tier != "" {
		parts = append(parts, "tier="+hit.Tier.String())
	}
	if len(hit.Categories) > 0 {
		parts = append(parts, "categories="+strings.Join(hit.Categories, ","))
	}
	return strings.Join(parts, " ")
}
