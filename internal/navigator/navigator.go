// Package navigator assembles the pieces every binary needs from one
// Config: the tokenizer, the corpus loaders, the index engine and the query
// executor.
package navigator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/postgres"
)

type Navigator struct {
	Engine   *indexer.Engine
	Executor *executor.Executor
	Corpus   loader.Multi
	// Dirs are the corpus directories on disk, for watching.
	Dirs []string
	// Postgres is set when the database corpus is enabled.
	Postgres *postgres.Client
}

// New wires a Navigator. m may be nil. The index starts empty; call
// Engine.LoadOrBuild with Corpus to populate it.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Navigator, error) {
	tok, err := NewTokenizer(cfg.Indexer)
	if err != nil {
		return nil, err
	}
	var opts []indexer.Option
	if m != nil {
		opts = append(opts, indexer.WithMetrics(m))
	}
	engine, err := indexer.NewEngine(cfg.Indexer, tok, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating index engine: %w", err)
	}
	scoreCfg, err := ranker.NewScoreConfig(cfg.Search.K1, cfg.Search.B)
	if err != nil {
		return nil, err
	}
	scorer, err := ranker.New(cfg.Search.Scorer, scoreCfg)
	if err != nil {
		return nil, err
	}

	dirs := loader.NewDirLoader(cfg.Corpus)
	n := &Navigator{
		Engine: engine,
		Executor: executor.New(engine, scorer,
			executor.WithDefaultTopK(cfg.Search.DefaultLimit),
			executor.WithMaxResults(cfg.Search.MaxResults),
		),
		Corpus: loader.Multi{dirs, loader.NewPapersLoader(PapersPath(cfg.Corpus))},
		Dirs:   dirs.Dirs(),
	}
	if cfg.Postgres.Enabled {
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres corpus: %w", err)
		}
		n.Postgres = client
		n.Corpus = append(n.Corpus, loader.NewPostgresLoader(client))
		slog.Info("postgres corpus enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}
	return n, nil
}

func (n *Navigator) Close() error {
	if n.Postgres != nil {
		return n.Postgres.Close()
	}
	return nil
}

// NewTokenizer builds the tokenizer shared by indexing and querying.
func NewTokenizer(cfg config.IndexerConfig) (*tokenizer.Tokenizer, error) {
	stemmer, err := tokenizer.ParseStemmer(cfg.Stemmer)
	if err != nil {
		return nil, err
	}
	return tokenizer.New(tokenizer.Options{
		RemoveStopWords: cfg.RemoveStopWords,
		Stemmer:         stemmer,
		MinLength:       cfg.MinTokenLength,
	}), nil
}

// PapersPath resolves the papers file against the data directory unless it
// is absolute.
func PapersPath(cfg config.CorpusConfig) string {
	if cfg.PapersFile == "" || filepath.IsAbs(cfg.PapersFile) {
		return cfg.PapersFile
	}
	return filepath.Join(cfg.DataDir, cfg.PapersFile)
}
