// Command analytics aggregates search analytics across searcher replicas.
//
// It consumes the search-analytics topic with its own consumer group,
// periodically persists snapshots to PostgreSQL when it is configured, and
// serves GET /api/v1/analytics and GET /api/v1/analytics/snapshot.
//
// Usage:
//
//	go run ./cmd/analytics [-config navigator.yaml] [-port 8081]
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 0, "listen port (defaults to server.port)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka; set kafka.enabled or BCI_KAFKA_ENABLED")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

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

	agg := analytics.NewAggregator(cfg.Analytics.LatencyWindow)

	// A separate group so searchers consuming the same topic each still see
	// every event.
	kcfg := cfg.Kafka
	kcfg.ConsumerGroup += "-analytics"
	consumer := kafka.NewConsumer(kcfg, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	defer consumer.Close()
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- agg.Consume(ctx, consumer)
	}()

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		select {
		case err := <-consumerErr:
			consumerErr <- err
			return health.ComponentHealth{Status: health.StatusDown, Message: fmt.Sprintf("consumer stopped: %v", err)}
		default:
			return health.ComponentHealth{Status: health.StatusUp}
		}
	})

	var snapshots analytics.SnapshotReader
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		checker.Register("postgres", health.Ping(db.Ping, false))

		store := aggregator.NewStore(db.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create analytics schema", "error", err)
			os.Exit(1)
		}
		done := store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		defer func() { <-done }()
		snapshots = store
	}

	h := analytics.NewHandler(agg, snapshots)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", h.Snapshot)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins))(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}
