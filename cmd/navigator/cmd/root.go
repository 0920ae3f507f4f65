// Package cmd provides the CLI commands for the research navigator.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/navigator"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd creates the root command for the navigator CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "navigator",
		Short: "Keyword search over BCI research documents",
		Long: `navigator indexes the research corpus (markdown reports, JSON data
files and the papers catalogue) and ranks it with BM25.

The index is saved as a snapshot and reused until the corpus changes
or --force is given.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Results go to stdout; logs stay on stderr.
			logger.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, "text")
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newRelatedCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// open loads the config and brings up a navigator with a populated index.
// force ignores any saved snapshot.
func open(ctx context.Context, opts *globalOptions, force bool) (*navigator.Navigator, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	nav, err := navigator.New(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	if _, err := nav.Engine.LoadOrBuild(ctx, nav.Corpus, force || cfg.Indexer.ForceRebuild); err != nil {
		nav.Close()
		return nil, fmt.Errorf("loading index: %w", err)
	}
	return nav, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
