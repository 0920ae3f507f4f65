package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// StatsOutput is the JSON output format for index stats.
type StatsOutput struct {
	Generation   string    `json:"generation"`
	BuiltAt      time.Time `json:"built_at"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	TotalTokens  int64     `json:"total_tokens"`
	AvgDocLength float64   `json:"avg_doc_length"`
	Scorer       string    `json:"scorer"`
	Tokenizer    string    `json:"tokenizer"`
	Snapshot     string    `json:"snapshot,omitempty"`
}

func newStatsCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			nav, err := open(ctx, global, false)
			if err != nil {
				return err
			}
			defer nav.Close()

			ix := nav.Engine.Current()
			stats := ix.Stats()
			s := StatsOutput{
				Generation:   ix.Generation(),
				BuiltAt:      ix.BuiltAt().UTC(),
				Documents:    stats.TotalDocs(),
				Terms:        ix.VocabularySize(),
				TotalTokens:  stats.Tokens,
				AvgDocLength: stats.AvgDocLength(),
				Scorer:       nav.Executor.Scorer().Name(),
				Tokenizer:    nav.Engine.Tokenizer().Fingerprint(),
				Snapshot:     nav.Engine.SnapshotPath(),
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(out, "Generation:      %s\n", s.Generation)
			fmt.Fprintf(out, "Built at:        %s\n", s.BuiltAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Documents:       %d\n", s.Documents)
			fmt.Fprintf(out, "Terms:           %d\n", s.Terms)
			fmt.Fprintf(out, "Total tokens:    %d\n", s.TotalTokens)
			fmt.Fprintf(out, "Avg doc length:  %.2f\n", s.AvgDocLength)
			fmt.Fprintf(out, "Scorer:          %s\n", s.Scorer)
			fmt.Fprintf(out, "Tokenizer:       %s\n", s.Tokenizer)
			if s.Snapshot != "" {
				fmt.Fprintf(out, "Snapshot:        %s\n", s.Snapshot)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
