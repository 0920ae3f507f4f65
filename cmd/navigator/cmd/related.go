package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newRelatedCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "related <query>",
		Short: "Suggest related topics",
		Long: `List up to five distinct document titles among the best matches
for a query, in rank order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			nav, err := open(ctx, global, false)
			if err != nil {
				return err
			}
			defer nav.Close()

			topics, err := nav.Executor.RelatedTopics(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(topics) == 0 {
				fmt.Fprintln(out, "No related topics found.")
				return nil
			}
			fmt.Fprintln(out, "Related topics:")
			for _, t := range topics {
				fmt.Fprintf(out, "  - %s\n", t)
			}
			return nil
		},
	}
}
