package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/navigator"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/watcher"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	forceRebuild := flag.Bool("force-rebuild", false, "ignore the saved index snapshot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "scorer", cfg.Search.Scorer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port, reg); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	nav, err := navigator.New(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to initialise navigator", "error", err)
		os.Exit(1)
	}
	defer nav.Close()

	ix, err := nav.Engine.LoadOrBuild(ctx, nav.Corpus, *forceRebuild || cfg.Indexer.ForceRebuild)
	if err != nil {
		slog.Error("initial index build failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index ready", "generation", ix.Generation(), "docs", ix.Len(), "terms", ix.VocabularySize())

	checker := health.NewChecker()

	queryCache, redisClient := newCache(ctx, cfg, m)
	if redisClient != nil {
		defer redisClient.Close()
		checker.Register("redis", health.Ping(redisClient.Ping, false))
	}
	if queryCache != nil {
		nav.Engine.OnPublish(func(ix *index.Index) {
			if _, err := queryCache.Invalidate(context.Background()); err != nil {
				slog.Warn("cache flush after publish failed", "generation", ix.Generation(), "error", err)
			}
		})
	}
	if nav.Postgres != nil {
		checker.Register("postgres", health.Ping(nav.Postgres.Ping, false))
	}

	agg := analytics.NewAggregator(cfg.Analytics.LatencyWindow)
	var tracker analytics.Tracker
	if cfg.Analytics.Enabled {
		tracker = startAnalytics(ctx, cfg, agg)
	}
	if nav.Postgres != nil && cfg.Analytics.Enabled {
		store := aggregator.NewStore(nav.Postgres.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("analytics persistence disabled", "error", err)
		} else {
			done := store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			defer func() { <-done }()
		}
	}

	if cfg.Kafka.Enabled {
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusRebuild,
			consumer.HandleRebuild(analytics.TrackRebuilds(nav.Engine, tracker, "kafka"), nav.Corpus))
		defer kc.Close()
		go func() {
			if err := consumer.New(kc).Start(ctx); err != nil {
				slog.Error("rebuild consumer stopped", "error", err)
			}
		}()
	}

	if cfg.Corpus.Watch {
		reloader := analytics.TrackRebuilds(nav.Engine, tracker, "watcher")
		w := watcher.New(nav.Dirs, func(ctx context.Context) error {
			_, err := reloader.Reload(ctx, nav.Corpus)
			return err
		}, watcher.Options{Debounce: cfg.Corpus.WatchDebounce})
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("corpus watcher stopped", "error", err)
			}
		}()
	}

	opts := []handler.Option{
		handler.WithMetrics(m),
		handler.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxResults),
		handler.WithRebuildTimeout(cfg.Indexer.RebuildTimeout),
	}
	if queryCache != nil {
		opts = append(opts, handler.WithCache(queryCache))
	}
	if tracker != nil {
		opts = append(opts, handler.WithTracker(tracker))
	}
	h := handler.New(nav.Executor, nav.Engine, nav.Corpus, opts...)
	checker.Register("index", h.IndexHealth)

	var analyticsSnapshots analytics.SnapshotReader
	if nav.Postgres != nil {
		analyticsSnapshots = aggregator.NewStore(nav.Postgres.DB)
	}

	routes := router.Options{
		Search:         h,
		Analytics:      analytics.NewHandler(agg, analyticsSnapshots),
		Health:         checker,
		Metrics:        m,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		routes.Limiter = limiter
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(routes),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + cfg.Indexer.RebuildTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// newCache picks the configured backend. An unreachable Redis falls back to
// the in-process cache rather than running uncached.
func newCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*cache.QueryCache, *pkgredis.Client) {
	local := func() *cache.QueryCache {
		return cache.New(cache.NewLocalBackend(cfg.Search.LocalCacheSize, cfg.Search.CacheTTL), cfg.Search.CacheTTL, cache.WithMetrics(m))
	}
	switch cfg.Search.CacheBackend {
	case "none":
		slog.Info("search caching disabled")
		return nil, nil
	case "redis":
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process cache", "error", err)
			return local(), nil
		}
		breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
			Threshold: 5,
			Cooldown:  30 * time.Second,
			OnStateChange: func(from, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues("redis-cache").Set(float64(to))
			},
		})
		slog.Info("search cache enabled", "backend", "redis", "addr", cfg.Redis.Addr, "ttl", cfg.Search.CacheTTL)
		return cache.New(cache.NewRedisBackend(client, breaker), cfg.Search.CacheTTL, cache.WithMetrics(m)), client
	default:
		slog.Info("search cache enabled", "backend", "memory", "size", cfg.Search.LocalCacheSize, "ttl", cfg.Search.CacheTTL)
		return local(), nil
	}
}

// startAnalytics publishes events to Kafka and consumes them back into agg
// when Kafka is enabled; otherwise agg records them directly.
func startAnalytics(ctx context.Context, cfg *config.Config, agg *analytics.Aggregator) analytics.Tracker {
	if !cfg.Kafka.Enabled {
		return agg
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	collector := analytics.NewCollector(producer, cfg.Analytics)
	collector.Start(ctx)

	kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	go func() {
		if err := agg.Consume(ctx, kc); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		collector.Close()
		producer.Close()
		kc.Close()
	}()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	return collector
}
