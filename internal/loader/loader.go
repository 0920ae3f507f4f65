// Package loader turns the research corpus on disk (markdown reports, JSON
// fact tables, the papers database) or in Postgres into index.Documents.
package loader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
)

// Loader produces the full corpus for one build.
type Loader interface {
	Load(ctx context.Context) ([]index.Document, error)
}

// Func adapts a plain function to Loader.
type Func func(ctx context.Context) ([]index.Document, error)

func (f Func) Load(ctx context.Context) ([]index.Document, error) {
	return f(ctx)
}

// Multi runs every loader concurrently and concatenates their documents in
// loader order. The first failure cancels the rest.
type Multi []Loader

func (m Multi) Load(ctx context.Context) ([]index.Document, error) {
	parts := make([][]index.Document, len(m))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range m {
		g.Go(func() error {
			docs, err := l.Load(gctx)
			if err != nil {
				return fmt.Errorf("loader %d: %w", i, err)
			}
			parts[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	docs := make([]index.Document, 0, total)
	for _, p := range parts {
		docs = append(docs, p...)
	}
	return docs, nil
}
