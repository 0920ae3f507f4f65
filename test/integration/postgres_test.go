package integration

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/postgres"
)

const researchDocumentsSchema = `
CREATE TABLE IF NOT EXISTS research_documents (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL,
    body       TEXT NOT NULL,
    categories TEXT[],
    year       INT,
    tier       TEXT
)`

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Enabled:         true,
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "navigator_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "navigator"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func TestPostgresLoader_BuildsIndex(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	_, err := db.DB.ExecContext(ctx, researchDocumentsSchema)
	require.NoError(t, err)
	_, err = db.DB.ExecContext(ctx, `DELETE FROM research_documents WHERE id LIKE 'it-%'`)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.DB.ExecContext(context.Background(), `DELETE FROM research_documents WHERE id LIKE 'it-%'`)
	})

	insert := `INSERT INTO research_documents (id, title, body, categories, year, tier) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = db.DB.ExecContext(ctx, insert, "it-1", "Stentrode", "Endovascular electrode array delivered through the jugular vein",
		pq.Array([]string{"surgical"}), 2023, "HIGH")
	require.NoError(t, err)
	_, err = db.DB.ExecContext(ctx, insert, "it-2", "Utah array", "Rigid silicon microelectrode array", nil, nil, nil)
	require.NoError(t, err)

	docs, err := loader.NewPostgresLoader(db).Load(ctx)
	require.NoError(t, err)

	var ours []index.Document
	for _, d := range docs {
		if len(d.ID) > 3 && d.ID[:3] == "it-" {
			ours = append(ours, d)
		}
	}
	require.Len(t, ours, 2)
	assert.Equal(t, []string{"surgical"}, ours[0].Categories)
	assert.Equal(t, 2023, ours[0].Year)
	assert.Equal(t, index.TierHigh, ours[0].Tier)
	assert.Nil(t, ours[1].Categories)
	assert.Zero(t, ours[1].Year)

	ix, err := index.Build(ours, tokenizer.Default())
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
}

func TestAnalyticsStore_RoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	store := aggregator.NewStore(db.DB)
	require.NoError(t, store.EnsureSchema(ctx))

	agg := analytics.NewAggregator(10)
	agg.Track(analytics.SearchEvent{Type: analytics.EventSearch, Query: "stentrode", TotalHits: 1, LatencyMs: 4})
	require.NoError(t, store.SaveSnapshot(ctx, agg.Stats()))

	latest, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(1), latest.TotalSearches)
	require.NotEmpty(t, latest.TopQueries)
	assert.Equal(t, "stentrode", latest.TopQueries[0].Query)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
