package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
)

// DirLoader reads markdown reports from the research directory and JSON
// fact tables from the data directory. Files are visited in name order,
// markdown first, and every chunk gets the next zero-padded "doc_<n>" ID, so
// the same tree always yields the same IDs and ID order is load order.
type DirLoader struct {
	researchDir string
	dataDir     string
	skip        map[string]bool
	chunker     Chunker
	logger      *slog.Logger
}

func NewDirLoader(cfg config.CorpusConfig) *DirLoader {
	skip := make(map[string]bool)
	if cfg.PapersFile != "" {
		skip[filepath.Base(cfg.PapersFile)] = true
	}
	return &DirLoader{
		researchDir: cfg.ResearchDir,
		dataDir:     cfg.DataDir,
		skip:        skip,
		chunker:     NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:      slog.Default().With("component", "dir-loader"),
	}
}

// Dirs lists the directories the loader reads, for watching.
func (l *DirLoader) Dirs() []string {
	var dirs []string
	for _, d := range []string{l.researchDir, l.dataDir} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func (l *DirLoader) Load(ctx context.Context) ([]index.Document, error) {
	var docs []index.Document

	mdFiles, err := l.list(l.researchDir, ".md")
	if err != nil {
		return nil, err
	}
	for _, path := range mdFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		report, err := ParseMarkdown(content)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		chunks := l.chunker.Split(report.Body)
		for i, chunk := range chunks {
			docs = append(docs, index.Document{
				ID:         chunkID(len(docs)),
				Title:      report.Title,
				Text:       chunk,
				Source:     sourcePath(l.researchDir, path),
				ChunkIndex: i,
				Categories: report.Categories,
				Year:       report.Year,
				Tier:       report.Tier,
			})
		}
		l.logger.Debug("loaded report", "file", path, "title", report.Title, "chunks", len(chunks))
	}

	jsonFiles, err := l.list(l.dataDir, ".json")
	if err != nil {
		return nil, err
	}
	for _, path := range jsonFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		flat, err := FlattenJSON(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		title := titleFromFile(path)
		chunks := l.chunker.Split(flat)
		for i, chunk := range chunks {
			docs = append(docs, index.Document{
				ID:         chunkID(len(docs)),
				Title:      title,
				Text:       chunk,
				Source:     sourcePath(l.dataDir, path),
				ChunkIndex: i,
			})
		}
		l.logger.Debug("loaded data file", "file", path, "chunks", len(chunks))
	}

	l.logger.Info("corpus loaded from disk",
		"reports", len(mdFiles),
		"data_files", len(jsonFiles),
		"chunks", len(docs),
	)
	return docs, nil
}

func chunkID(n int) string {
	return fmt.Sprintf("doc_%06d", n)
}

// list returns the files in dir with the given extension, sorted by name.
// A missing directory yields no files.
func (l *DirLoader) list(dir, ext string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("corpus directory missing", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext || l.skip[e.Name()] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// sourcePath is path relative to the parent of its corpus directory, e.g.
// "research/neuralace.md".
func sourcePath(dir, path string) string {
	rel, err := filepath.Rel(filepath.Dir(filepath.Clean(dir)), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// titleFromFile turns "pathways_data.json" into "Pathways Data".
func titleFromFile(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return humanizeKey(stem)
}
