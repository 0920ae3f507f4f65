package loader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

const selectDocumentsSQL = `
SELECT id, title, body, COALESCE(categories, '{}'), COALESCE(year, 0), COALESCE(tier, '')
FROM research_documents
ORDER BY id`

// PostgresLoader reads curated documents from the research_documents table.
// Transient failures are retried, malformed rows are not; the whole read
// happens in one transaction so a rebuild sees a consistent table.
type PostgresLoader struct {
	client *postgres.Client
	retry  resilience.Backoff
	logger *slog.Logger
}

func NewPostgresLoader(client *postgres.Client) *PostgresLoader {
	return &PostgresLoader{
		client: client,
		logger: slog.Default().With("component", "postgres-loader"),
	}
}

func (l *PostgresLoader) Load(ctx context.Context) ([]index.Document, error) {
	var docs []index.Document
	err := resilience.Retry(ctx, "load-research-documents", l.retry, func(ctx context.Context) error {
		var err error
		docs, err = l.load(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading documents from postgres: %w", err)
	}
	l.logger.Info("corpus loaded from postgres", "documents", len(docs))
	return docs, nil
}

func (l *PostgresLoader) load(ctx context.Context) ([]index.Document, error) {
	var docs []index.Document
	err := l.client.InTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectDocumentsSQL)
		if err != nil {
			return fmt.Errorf("querying research_documents: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			doc, err := scanDocument(rows.Scan)
			if err != nil {
				return resilience.Permanent(err)
			}
			docs = append(docs, doc)
		}
		return rows.Err()
	})
	return docs, err
}

func scanDocument(scan func(dest ...any) error) (index.Document, error) {
	var (
		doc  index.Document
		tier string
	)
	if err := scan(&doc.ID, &doc.Title, &doc.Text, pq.Array(&doc.Categories), &doc.Year, &tier); err != nil {
		return index.Document{}, fmt.Errorf("scanning research document: %w", err)
	}
	t, err := index.ParseTier(tier)
	if err != nil {
		return index.Document{}, fmt.Errorf("research document %s: %w", doc.ID, err)
	}
	doc.Tier = t
	doc.Source = "postgres/research_documents"
	if len(doc.Categories) == 0 {
		doc.Categories = nil
	}
	return doc, nil
}
