package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:      "neuralace",
		Generation: "gen-1",
		Scorer:     "bm25",
		TotalHits:  1,
		Results:    []executor.Hit{{DocID: "doc_3", Title: "Neuralace", Score: 1.25, MatchedTerms: []string{"neuralace"}}},
		TermStats:  map[string]int{"neuralace": 1},
	}
}

func TestKey(t *testing.T) {
	const bm25 = "bm25(k1=1.5,b=0.75)"
	base := executor.Request{Query: "flexible  electrodes", TopK: 10}
	k := Key("gen-1", bm25, base)

	assert.Equal(t, k, Key("gen-1", bm25, executor.Request{Query: " flexible electrodes ", TopK: 10}), "whitespace is collapsed")
	assert.NotEqual(t, k, Key("gen-2", bm25, base), "generation is part of the key")
	assert.NotEqual(t, k, Key("gen-1", "bm25(k1=1.2,b=0.75)", base), "score parameters are part of the key")
	assert.NotEqual(t, k, Key("gen-1", "tfidf", base), "scorer is part of the key")
	assert.NotEqual(t, k, Key("gen-1", bm25, executor.Request{Query: base.Query, TopK: 5}))
	assert.NotEqual(t, k, Key("gen-1", bm25, executor.Request{Query: base.Query, TopK: 10, Boolean: true}))
	assert.NotEqual(t, k, Key("gen-1", bm25, executor.Request{Query: "flexible AND electrodes", TopK: 10}))
	assert.NotEqual(t, k, Key("gen-1", bm25, executor.Request{Query: base.Query, TopK: 10, Filter: filter.Spec{Tiers: []index.Tier{index.TierHigh}}}))
	assert.Contains(t, k, keyPrefix)
}

func TestQueryCache_LocalHitAndMiss(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := New(NewLocalBackend(16, time.Minute), time.Minute, WithMetrics(m))
	ctx := context.Background()

	_, ok := c.Get(ctx, "search:k")
	assert.False(t, ok)

	c.Set(ctx, "search:k", sampleResult())
	got, ok := c.Get(ctx, "search:k")
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	stats := c.Stats()
	assert.Equal(t, Stats{Backend: "memory", Hits: 1, Misses: 1, HitRate: 0.5}, stats)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("memory")))
}

func TestQueryCache_GetOrComputeCoalesces(t *testing.T) {
	c := New(NewLocalBackend(16, time.Minute), time.Minute)
	var computes atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		computes.Add(1)
		<-release
		return sampleResult(), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := c.GetOrCompute(context.Background(), "search:same", compute)
			assert.NoError(t, err)
			assert.Equal(t, "doc_3", res.Results[0].DocID)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), computes.Load())

	_, hit, err := c.GetOrCompute(context.Background(), "search:same", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), computes.Load())
}

func TestQueryCache_ComputeErrorIsNotCached(t *testing.T) {
	c := New(NewLocalBackend(16, time.Minute), time.Minute)
	boom := errors.New("bad filter")
	_, _, err := c.GetOrCompute(context.Background(), "search:k", func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), "search:k")
	assert.False(t, ok)
}

func TestQueryCache_Invalidate(t *testing.T) {
	backend := NewLocalBackend(16, time.Minute)
	c := New(backend, time.Minute)
	c.Set(context.Background(), "search:a", sampleResult())
	c.Set(context.Background(), "search:b", sampleResult())

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, backend.Len())
}

type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	err     error
	flushed string
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.data[key]
	if !ok {
		return nil, goredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = pattern
	n := int64(len(f.data))
	f.data = map[string][]byte{}
	return n, nil
}

func TestRedisBackend_MissIsNotAFailure(t *testing.T) {
	kv := &fakeKV{data: map[string][]byte{}}
	breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{Threshold: 1})
	b := NewRedisBackend(kv, breaker)

	for i := 0; i < 3; i++ {
		_, ok, err := b.Get(context.Background(), "search:absent")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, resilience.StateClosed, breaker.State())

	require.NoError(t, b.Set(context.Background(), "search:k", []byte("v"), time.Minute))
	v, ok, err := b.Get(context.Background(), "search:k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	n, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "search:*", kv.flushed)
}

func TestRedisBackend_OutageDegradesToMisses(t *testing.T) {
	kv := &fakeKV{data: map[string][]byte{}, err: errors.New("connection refused")}
	breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	c := New(NewRedisBackend(kv, breaker), time.Minute)

	calls := 0
	for i := 0; i < 4; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), "search:k", func() (*executor.SearchResult, error) {
			calls++
			return sampleResult(), nil
		})
		require.NoError(t, err, "cache failures never fail the query")
		assert.False(t, hit)
		assert.Equal(t, "doc_3", res.Results[0].DocID)
	}
	assert.Equal(t, 4, calls)
	assert.Equal(t, resilience.StateOpen, breaker.State())

	_, _, err := NewRedisBackend(kv, breaker).Get(context.Background(), "search:k")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Greater(t, c.Stats().Errors, int64(0))
}
