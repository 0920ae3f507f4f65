package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{query: query, args: args})
	return nil, f.err
}

func (f *fakeDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	panic("not used")
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fixedStats analytics.AggregatedStats

func (s fixedStats) Stats() analytics.AggregatedStats { return analytics.AggregatedStats(s) }

func TestStore_SaveSnapshot(t *testing.T) {
	db := &fakeDB{}
	s := NewStore(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, s.SaveSnapshot(context.Background(), analytics.AggregatedStats{TotalSearches: 7}))

	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS analytics_snapshots")
	assert.Contains(t, db.calls[1].query, "INSERT INTO analytics_snapshots")
	require.Len(t, db.calls[1].args, 2)

	var saved analytics.AggregatedStats
	require.NoError(t, json.Unmarshal(db.calls[1].args[0].([]byte), &saved))
	assert.Equal(t, int64(7), saved.TotalSearches)
	assert.Equal(t, at, db.calls[1].args[1])
}

func TestStore_SaveSnapshotError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	err := NewStore(db).SaveSnapshot(context.Background(), analytics.AggregatedStats{})
	assert.ErrorContains(t, err, "saving analytics snapshot")
}

func TestStore_PeriodicSaveTakesFinalSnapshot(t *testing.T) {
	db := &fakeDB{}
	ctx, cancel := context.WithCancel(context.Background())
	done := NewStore(db).StartPeriodicSave(ctx, fixedStats{TotalSearches: 1}, 5*time.Millisecond)

	require.Eventually(t, func() bool { return db.count() >= 1 }, time.Second, time.Millisecond)
	before := db.count()
	cancel()
	<-done
	assert.Greater(t, db.count(), before)
}
