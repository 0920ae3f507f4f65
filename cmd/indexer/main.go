package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/navigator"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/logger"
)

// The indexer job rebuilds the snapshot from the corpus, writes it to the
// index data directory and, with Kafka enabled, tells running searchers to
// pick it up.
func main() {
	configPath := flag.String("config", "", "path to config file")
	announce := flag.Bool("announce", true, "publish a rebuild request when kafka is enabled")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer job",
		"research_dir", cfg.Corpus.ResearchDir,
		"data_dir", cfg.Corpus.DataDir,
		"snapshot", cfg.Indexer.SnapshotFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *announce); err != nil {
		slog.Error("indexer job failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer job finished")
}

func run(ctx context.Context, cfg *config.Config, announce bool) error {
	nav, err := navigator.New(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer nav.Close()
	if nav.Engine.SnapshotPath() == "" {
		return fmt.Errorf("indexer.dataDir is not set, nowhere to write the snapshot")
	}

	ix, err := nav.Engine.Reload(ctx, nav.Corpus)
	if err != nil {
		return err
	}
	slog.Info("snapshot written",
		"path", nav.Engine.SnapshotPath(),
		"generation", ix.Generation(),
		"docs", ix.Len(),
		"terms", ix.VocabularySize(),
	)

	if !announce || !cfg.Kafka.Enabled {
		return nil
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusRebuild)
	defer producer.Close()
	if err := consumer.Announce(ctx, producer, ix, "indexer-job"); err != nil {
		return fmt.Errorf("announcing snapshot: %w", err)
	}
	slog.Info("rebuild announced", "topic", cfg.Kafka.Topics.CorpusRebuild, "generation", ix.Generation())
	return nil
}
