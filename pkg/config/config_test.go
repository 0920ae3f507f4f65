package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, "bm25", cfg.Search.Scorer)
	assert.Equal(t, 500, cfg.Corpus.ChunkSize)
	assert.Equal(t, 50, cfg.Corpus.ChunkOverlap)
	assert.True(t, cfg.Indexer.RemoveStopWords)
	assert.Equal(t, "corpus-rebuild", cfg.Kafka.Topics.CorpusRebuild)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navigator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
search:
  k1: 1.2
  scorer: tfidf
indexer:
  stemmer: porter
  rebuildTimeout: 30s
corpus:
  researchDir: /srv/research
`), 0o644))
	t.Setenv("BCI_SEARCH_B", "0.5")
	t.Setenv("BCI_SERVER_PORT", "9000")
	t.Setenv("BCI_SERVER_CORS_ORIGINS", "http://localhost:3000,https://dashboard.example.org")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.2, cfg.Search.K1)
	assert.Equal(t, 0.5, cfg.Search.B)
	assert.Equal(t, "tfidf", cfg.Search.Scorer)
	assert.Equal(t, "porter", cfg.Indexer.Stemmer)
	assert.Equal(t, 30*time.Second, cfg.Indexer.RebuildTimeout)
	assert.Equal(t, "/srv/research", cfg.Corpus.ResearchDir)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000", "https://dashboard.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 600, cfg.Server.RateLimit)
	assert.True(t, cfg.Indexer.RemoveStopWords, "unset keys keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k1", func(c *Config) { c.Search.K1 = 0 }},
		{"negative k1", func(c *Config) { c.Search.K1 = -0.5 }},
		{"b above one", func(c *Config) { c.Search.B = 1.5 }},
		{"b below zero", func(c *Config) { c.Search.B = -0.1 }},
		{"unknown scorer", func(c *Config) { c.Search.Scorer = "dense" }},
		{"unknown cache", func(c *Config) { c.Search.CacheBackend = "memcached" }},
		{"default over max", func(c *Config) { c.Search.DefaultLimit = 500 }},
		{"overlap too large", func(c *Config) { c.Corpus.ChunkOverlap = 500 }},
		{"unknown stemmer", func(c *Config) { c.Indexer.Stemmer = "snowball" }},
		{"no snapshot file", func(c *Config) { c.Indexer.SnapshotFile = "" }},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidConfig)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoad_RejectsInvalidEnv(t *testing.T) {
	t.Setenv("BCI_SEARCH_K1", "0")
	_, err := Load("")
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}
