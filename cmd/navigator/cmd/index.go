package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd(global *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the index snapshot",
		Long: `Load the corpus, build the inverted index and save the snapshot.

An intact snapshot built with the configured tokenizer is reused
unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			ctx := commandContext(cmd)
			nav, err := open(ctx, global, force)
			if err != nil {
				return err
			}
			defer nav.Close()

			ix := nav.Engine.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d documents, %d terms in %s\n",
				ix.Len(), ix.VocabularySize(), time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(out, "Generation: %s\n", ix.Generation())
			if path := nav.Engine.SnapshotPath(); path != "" {
				fmt.Fprintf(out, "Snapshot: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if a usable snapshot exists")

	return cmd
}
