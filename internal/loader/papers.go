package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

// Paper is one entry of the literature database.
type Paper struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Authors            []string `json:"authors"`
	Journal            string   `json:"journal"`
	Year               int      `json:"year"`
	Categories         []string `json:"categories"`
	AbstractSummary    string   `json:"abstract_summary"`
	KeyFindings        []string `json:"key_findings"`
	NeuralaceRelevance string   `json:"neuralace_relevance"`
}

type papersFile struct {
	Papers []Paper `json:"papers"`
}

// PapersLoader turns papers.json into one document per paper. Paper IDs are
// kept as document IDs and the relevance label becomes the tier facet.
type PapersLoader struct {
	path   string
	logger *slog.Logger
}

func NewPapersLoader(path string) *PapersLoader {
	return &PapersLoader{
		path:   path,
		logger: slog.Default().With("component", "papers-loader"),
	}
}

func (l *PapersLoader) Load(ctx context.Context) ([]index.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("papers database missing", "path", l.path)
			return nil, nil
		}
		return nil, fmt.Errorf("reading papers database: %w", err)
	}
	var pf papersFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing papers database %s: %w", l.path, err)
	}
	docs := make([]index.Document, 0, len(pf.Papers))
	for i, p := range pf.Papers {
		doc, err := p.Document()
		if err != nil {
			return nil, fmt.Errorf("paper %d in %s: %w", i, l.path, err)
		}
		docs = append(docs, doc)
	}
	l.logger.Info("papers loaded", "path", l.path, "papers", len(docs))
	return docs, nil
}

// Document maps the paper onto a searchable document. Title, abstract and
// key findings form the text.
func (p Paper) Document() (index.Document, error) {
	if strings.TrimSpace(p.ID) == "" {
		return index.Document{}, apperrors.New(apperrors.ErrInvalidDocument, 400, "paper has no id")
	}
	tier, err := index.ParseTier(p.NeuralaceRelevance)
	if err != nil {
		return index.Document{}, apperrors.Newf(apperrors.ErrInvalidDocument, 400, "paper %s: %v", p.ID, err)
	}
	parts := []string{p.Title, p.AbstractSummary}
	parts = append(parts, p.KeyFindings...)
	return index.Document{
		ID:         p.ID,
		Title:      p.Title,
		Text:       strings.Join(nonEmpty(parts), "\n"),
		Source:     "papers/" + p.ID,
		Categories: p.Categories,
		Year:       p.Year,
		Tier:       tier,
	}, nil
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
