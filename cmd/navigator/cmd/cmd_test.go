package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/executor"
)

const papersFixture = `{"papers":[
  {"id":"P1","title":"Polyimide arrays","abstract_summary":"Flexible polyimide arrays for chronic recording","year":2022,"categories":["materials"],"neuralace_relevance":"HIGH"},
  {"id":"P2","title":"Wireless telemetry","abstract_summary":"Low power wireless telemetry for implants","year":2019,"categories":["power"],"neuralace_relevance":"MEDIUM"}
]}`

// writeCorpus lays out a small corpus and returns a config file pointing at
// it.
func writeCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	research := filepath.Join(root, "research")
	data := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(research, 0o755))
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(research, "neuralace.md"),
		[]byte("# Neuralace Overview\n\nFlexible mesh electrodes conform to the cortex.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "papers.json"), []byte(papersFixture), 0o644))

	cfg := fmt.Sprintf(`corpus:
  researchDir: %q
  dataDir: %q
indexer:
  dataDir: %q
search:
  cacheBackend: none
`, research, data, filepath.Join(root, "index"))
	path := filepath.Join(root, "navigator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

// execute runs the CLI and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestSearchCmd_RanksResults(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "search", "flexible")
	require.NoError(t, err)
	assert.Contains(t, out, "Result 1 (Score: ")
	assert.Contains(t, out, "Result 2 (Score: ")
	assert.NotContains(t, out, "Result 3")
	assert.NotContains(t, out, "Content:")
}

func TestSearchCmd_Facets(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "search", "flexible", "--category", "materials", "--full")
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Polyimide arrays")
	assert.Contains(t, out, "Facets: year=2022 tier=HIGH categories=materials")
	assert.Contains(t, out, "Content:\n")
	assert.NotContains(t, out, "Neuralace Overview")

	out, err = execute(t, "--config", cfg, "search", "", "--tier", "medium")
	require.NoError(t, err)
	assert.Contains(t, out, "Title: Wireless telemetry")
	assert.Equal(t, 1, strings.Count(out, "Result "))
}

func TestSearchCmd_BooleanFlag(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "search", "flexible AND polyimide")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "Result "))

	out, err = execute(t, "--config", cfg, "search", "flexible AND polyimide", "--boolean")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Result "))
	assert.Contains(t, out, "Title: Polyimide arrays")
}

func TestSearchCmd_NoResults(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "search", "quantum")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_JSON(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "search", "wireless telemetry", "--format", "json", "-k", "1")
	require.NoError(t, err)

	var res executor.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "P2", res.Results[0].DocID)
	assert.Equal(t, "bm25", res.Scorer)
	assert.Equal(t, 1, res.TotalHits)
}

func TestSearchCmd_RejectsBadInput(t *testing.T) {
	cfg := writeCorpus(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing query", []string{"search"}},
		{"blank query without filter", []string{"search", "  "}},
		{"unknown tier", []string{"search", "flexible", "--tier", "urgent"}},
		{"inverted years", []string{"search", "flexible", "--year-min", "2023", "--year-max", "2020"}},
		{"non-numeric year", []string{"search", "flexible", "--year-min", "recent"}},
		{"zero top-k", []string{"search", "flexible", "--top-k", "0"}},
		{"unknown format", []string{"search", "flexible", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"--config", cfg}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestRelatedCmd(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "related", "flexible")
	require.NoError(t, err)
	assert.Contains(t, out, "Related topics:")
	assert.Contains(t, out, "  - Polyimide arrays")
	assert.Contains(t, out, "  - Neuralace Overview")

	out, err = execute(t, "--config", cfg, "related", "quantum")
	require.NoError(t, err)
	assert.Contains(t, out, "No related topics found.")
}

func TestIndexAndStatsCmd(t *testing.T) {
	cfg := writeCorpus(t)

	out, err := execute(t, "--config", cfg, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 documents")
	assert.Contains(t, out, "Snapshot: ")

	out, err = execute(t, "--config", cfg, "stats", "--json")
	require.NoError(t, err)
	var stats StatsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 3, stats.Documents)
	assert.Positive(t, stats.Terms)
	assert.Equal(t, "bm25", stats.Scorer)
	assert.FileExists(t, stats.Snapshot)

	out, err = execute(t, "--config", cfg, "index", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Generation: "+stats.Generation, "an unchanged corpus keeps its generation")
}

func TestIndexCmd_BadConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestFormatResults(t *testing.T) {
	var buf bytes.Buffer
	formatResults(&buf, []executor.Hit{
		{DocID: "doc_1", Title: "Pathways", Source: "pathways.json", ChunkIndex: 2, Text: "510(k) clearance", Score: 1.35689},
		{DocID: "P1", Title: "Polyimide arrays", Year: 2022, Tier: index.TierHigh, Score: 0.4868},
	}, true)

	out := buf.String()
	assert.Contains(t, out, "Result 1 (Score: 1.36)\nSource: pathways.json\nTitle: Pathways\nChunk: 3\n")
	assert.Contains(t, out, "Content:\n510(k) clearance\n")
	assert.Contains(t, out, "Result 2 (Score: 0.49)\nTitle: Polyimide arrays\nChunk: 1\nFacets: year=2022 tier=HIGH\n")
	assert.Equal(t, 2, strings.Count(out, strings.Repeat("=", ruleWidth)))

	buf.Reset()
	formatResults(&buf, nil, false)
	assert.Equal(t, "No results found.\n", buf.String())
}
