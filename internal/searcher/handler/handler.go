// Package handler exposes the navigator's search, related-topic, index and
// cache operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

type Searcher interface {
	Search(ctx context.Context, req executor.Request) (*executor.SearchResult, error)
	RelatedTopics(ctx context.Context, query string) ([]string, error)
	Scorer() ranker.Scorer
}

type Option func(*Handler)

func WithCache(c *cache.QueryCache) Option {
	return func(h *Handler) { h.cache = c }
}

func WithTracker(t analytics.Tracker) Option {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLimits(defaultLimit, maxResults int) Option {
	return func(h *Handler) {
		if defaultLimit > 0 {
			h.defaultLimit = defaultLimit
		}
		if maxResults > 0 {
			h.maxResults = maxResults
		}
	}
}

// WithRebuildTimeout bounds POST /api/v1/index/rebuild.
func WithRebuildTimeout(d time.Duration) Option {
	return func(h *Handler) { h.rebuildTimeout = d }
}

type Handler struct {
	searcher       Searcher
	engine         analytics.Reloader
	source         indexer.DocumentSource
	cache          *cache.QueryCache
	tracker        analytics.Tracker
	metrics        *metrics.Metrics
	defaultLimit   int
	maxResults     int
	rebuildTimeout time.Duration
	logger         *slog.Logger
}

// New wires the HTTP surface. engine and source serve index stats and
// rebuilds; cache, tracker and metrics are optional.
func New(searcher Searcher, engine analytics.Reloader, source indexer.DocumentSource, opts ...Option) *Handler {
	h := &Handler{
		searcher:     searcher,
		engine:       engine,
		source:       source,
		defaultLimit: executor.DefaultTopK,
		maxResults:   executor.DefaultMaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/related", h.Related)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.Rebuild)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	params := r.URL.Query()

	query := params.Get("q")
	spec, err := filter.Parse(params["category"], params.Get("year_min"), params.Get("year_max"), params["tier"])
	if err != nil {
		h.recordQuery("error")
		h.writeAppError(w, err)
		return
	}
	if query == "" && spec.IsZero() {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	boolean := false
	if v := params.Get("boolean"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "boolean must be true or false")
			return
		}
		boolean = parsed
	}

	req := executor.Request{Query: query, Filter: spec, TopK: limit, Boolean: boolean}
	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	if h.cache != nil {
		key := cache.Key(h.engine.Current().Generation(), ranker.Fingerprint(h.searcher.Scorer()), req)
		result, cacheHit, err = h.cache.GetOrCompute(ctx, key, func() (*executor.SearchResult, error) {
			return h.searcher.Search(ctx, req)
		})
	} else {
		result, err = h.searcher.Search(ctx, req)
	}
	if err != nil {
		h.recordQuery("error")
		log.Error("search execution failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}

	latency := time.Since(start)
	h.observeSearch(result, cacheHit, latency)
	log.Info("search completed",
		"query", query,
		"filter", spec.Key(),
		"generation", result.Generation,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:       analytics.EventSearch,
			Query:      query,
			Terms:      termsOf(result),
			Filter:     spec.Key(),
			Generation: result.Generation,
			TotalHits:  result.TotalHits,
			Returned:   len(result.Results),
			LatencyMs:  latency.Milliseconds(),
			CacheHit:   cacheHit,
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}

	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	topics, err := h.searcher.RelatedTopics(ctx, query)
	if err != nil {
		logger.FromContext(ctx).Error("related topics failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:      analytics.EventRelated,
			Query:     query,
			TotalHits: len(topics),
			Returned:  len(topics),
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"query":  query,
		"topics": topics,
	})
}

type IndexStats struct {
	Generation   string    `json:"generation"`
	BuiltAt      time.Time `json:"built_at"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	TotalTokens  int64     `json:"total_tokens"`
	AvgDocLength float64   `json:"avg_doc_length"`
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statsOf(h.engine.Current()))
}

func statsOf(ix *index.Index) IndexStats {
	stats := ix.Stats()
	return IndexStats{
		Generation:   ix.Generation(),
		BuiltAt:      ix.BuiltAt(),
		Documents:    ix.Len(),
		Terms:        ix.VocabularySize(),
		TotalTokens:  stats.Tokens,
		AvgDocLength: stats.AvgLength,
	}
}

// Rebuild reloads the corpus and swaps in a new index. The reload outlives
// the client connection; on failure the previous index keeps serving and
// its generation is reported alongside the error.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	log := logger.FromContext(ctx)
	start := time.Now()

	reloader := analytics.TrackRebuilds(h.engine, h.tracker, "api")
	ix, err := resilience.Timeout(ctx, h.rebuildTimeout, "index-rebuild", func(ctx context.Context) (*index.Index, error) {
		return reloader.Reload(ctx, h.source)
	})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if apperrors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Error("index rebuild failed", "error", err, "status", status)
		h.writeJSON(w, status, map[string]any{
			"error":      err.Error(),
			"generation": h.engine.Current().Generation(),
		})
		return
	}

	stats := statsOf(ix)
	log.Info("index rebuilt via api", "generation", stats.Generation, "duration", time.Since(start))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "rebuilt",
		"index":       stats,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

// IndexHealth reports the index as degraded while it holds no documents.
func (h *Handler) IndexHealth(ctx context.Context) health.ComponentHealth {
	ix := h.engine.Current()
	if ix.Len() == 0 {
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
	}
	return health.ComponentHealth{
		Status:  health.StatusUp,
		Message: "generation " + ix.Generation() + ", " + strconv.Itoa(ix.Len()) + " documents",
	}
}

func (h *Handler) observeSearch(result *executor.SearchResult, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hits"
	if result.TotalHits == 0 {
		resultType = "zero_results"
	}
	cacheStatus := "bypass"
	if h.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
}

func (h *Handler) recordQuery(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func termsOf(result *executor.SearchResult) []string {
	terms := make([]string, 0, len(result.TermStats))
	for t := range result.TermStats {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return terms
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to a status. Client errors carry their message;
// anything else is reported generically.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.writeError(w, status, "search failed")
		return
	}
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		h.writeError(w, status, appErr.Message)
		return
	}
	h.writeError(w, status, err.Error())
}
