package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/tracing"
)

// DocumentSource supplies the full corpus for a rebuild.
type DocumentSource interface {
	Load(ctx context.Context) ([]index.Document, error)
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine owns the active index snapshot. Readers call Current and keep the
// returned *index.Index for the whole query; rebuilds construct a new index
// off to the side and swap the pointer, so a reader never sees a mix of two
// generations.
type Engine struct {
	current   atomic.Pointer[index.Index]
	tokenizer *tokenizer.Tokenizer
	writer    *segment.Writer
	cfg       config.IndexerConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// buildSem serialises builds; a buffered channel so waiting respects ctx.
	buildSem chan struct{}
	reloads  singleflight.Group

	listenerMu sync.RWMutex
	listeners  []func(*index.Index)
}

func NewEngine(cfg config.IndexerConfig, tok *tokenizer.Tokenizer, opts ...Option) (*Engine, error) {
	if tok == nil {
		tok = tokenizer.Default()
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating index data directory: %w", err)
		}
	}
	e := &Engine{
		tokenizer: tok,
		writer:    segment.NewWriter(cfg.DataDir),
		cfg:       cfg,
		logger:    slog.Default().With("component", "indexer"),
		buildSem:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(index.Empty(tok))
	return e, nil
}

// Current returns the active snapshot. Before the first successful build it
// is an empty index, never nil.
func (e *Engine) Current() *index.Index {
	return e.current.Load()
}

func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tokenizer
}

// OnPublish registers fn to run after every new snapshot is published.
func (e *Engine) OnPublish(fn func(*index.Index)) {
	e.listenerMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenerMu.Unlock()
}

// SnapshotPath is where Save writes and LoadOrBuild reads; empty when
// persistence is disabled.
func (e *Engine) SnapshotPath() string {
	if e.cfg.DataDir == "" || e.cfg.SnapshotFile == "" {
		return ""
	}
	return filepath.Join(e.cfg.DataDir, e.cfg.SnapshotFile)
}

// Rebuild builds a new index from docs and publishes it. On error the
// previous snapshot stays active and keeps serving queries.
func (e *Engine) Rebuild(ctx context.Context, docs []index.Document) (*index.Index, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	start := time.Now()
	ix, err := index.Build(docs, e.tokenizer)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.recordRebuild("failure", start)
		e.logger.Error("index rebuild rejected, keeping previous snapshot",
			"docs", len(docs),
			"active_generation", e.Current().Generation(),
			"error", err,
		)
		return nil, fmt.Errorf("building index: %w", err)
	}
	e.publish(ix)
	e.recordRebuild("success", start)
	e.logger.Info("index rebuilt",
		"generation", ix.Generation(),
		"docs", ix.Len(),
		"terms", ix.VocabularySize(),
		"avg_doc_length", ix.AvgDocLength(),
		"duration", time.Since(start),
	)
	return ix, nil
}

// Reload loads the corpus from src, rebuilds and, when persistence is
// configured, saves the snapshot. Concurrent callers share one reload.
func (e *Engine) Reload(ctx context.Context, src DocumentSource) (*index.Index, error) {
	if e.cfg.RebuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RebuildTimeout)
		defer cancel()
	}
	v, err, shared := e.reloads.Do("reload", func() (interface{}, error) {
		ctx, span := tracing.Start(ctx, "index.reload")
		defer func() {
			span.End()
			span.Log(ctx, e.logger)
		}()

		loadCtx, load := tracing.Start(ctx, "corpus.load")
		docs, err := src.Load(loadCtx)
		load.SetAttr("docs", len(docs))
		load.End()
		if err != nil {
			e.recordRebuild("failure", time.Now())
			return nil, fmt.Errorf("loading corpus: %w", err)
		}

		_, build := tracing.Start(ctx, "index.build")
		ix, err := e.Rebuild(ctx, docs)
		build.End()
		if err != nil {
			return nil, err
		}

		_, save := tracing.Start(ctx, "snapshot.save")
		if err := e.save(ix); err != nil {
			save.SetAttr("error", err.Error())
			e.logger.Warn("snapshot not persisted", "error", err)
		}
		save.End()
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug("joined in-flight reload")
	}
	return v.(*index.Index), nil
}

// LoadOrBuild publishes the persisted snapshot when it is present, intact
// and built with the configured tokenizer. Otherwise, or when force is set,
// it reloads from src.
func (e *Engine) LoadOrBuild(ctx context.Context, src DocumentSource, force bool) (*index.Index, error) {
	if path := e.SnapshotPath(); path != "" && !force {
		start := time.Now()
		ix, err := segment.Load(path, e.tokenizer)
		switch {
		case err == nil:
			e.publish(ix)
			e.recordRebuild("loaded", start)
			e.logger.Info("index snapshot loaded",
				"path", path,
				"generation", ix.Generation(),
				"docs", ix.Len(),
				"terms", ix.VocabularySize(),
			)
			return ix, nil
		case errors.Is(err, os.ErrNotExist):
			e.logger.Info("no index snapshot, building from source", "path", path)
		default:
			e.logger.Warn("index snapshot unusable, rebuilding from source",
				"path", path,
				"error", err,
				"corrupt", apperrors.Is(err, apperrors.ErrSnapshotCorrupt),
			)
		}
	}
	return e.Reload(ctx, src)
}

// Save writes the active snapshot to SnapshotPath.
func (e *Engine) Save() (string, error) {
	ix := e.Current()
	if err := e.save(ix); err != nil {
		return "", err
	}
	return e.SnapshotPath(), nil
}

func (e *Engine) save(ix *index.Index) error {
	if e.SnapshotPath() == "" {
		return nil
	}
	path, err := e.writer.Write(ix, e.cfg.SnapshotFile)
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	e.logger.Info("index snapshot saved", "path", path, "generation", ix.Generation())
	return nil
}

func (e *Engine) publish(ix *index.Index) {
	e.current.Store(ix)
	if e.metrics != nil {
		e.metrics.CorpusDocuments.Set(float64(ix.Len()))
		e.metrics.CorpusTerms.Set(float64(ix.VocabularySize()))
	}
	e.listenerMu.RLock()
	listeners := slices.Clone(e.listeners)
	e.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(ix)
	}
}

func (e *Engine) acquire(ctx context.Context) error {
	select {
	case e.buildSem <- struct{}{}:
		return nil
	default:
	}
	select {
	case e.buildSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", apperrors.ErrRebuildInProgress, ctx.Err())
	}
}

func (e *Engine) release() {
	<-e.buildSem
}

func (e *Engine) recordRebuild(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexRebuildsTotal.WithLabelValues(status).Inc()
	if status != "failure" {
		e.metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
	}
}
