// Package router wires the search service routes and applies the
// middleware chain.
package router

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/middleware"
)

// Options carries the handlers and middleware settings. Analytics,
// Health, Metrics and Limiter may be nil.
type Options struct {
	Search         *handler.Handler
	Analytics      *analytics.Handler
	Health         *health.Checker
	Metrics        *metrics.Metrics
	Limiter        middleware.Limiter
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// New builds the service handler.
//
// Route table:
//
//	GET    /api/v1/search               ranked search with facets
//	GET    /api/v1/related              related topic titles
//	GET    /api/v1/index/stats          active snapshot statistics
//	POST   /api/v1/index/rebuild        reload the corpus (no request timeout)
//	GET    /api/v1/cache/stats          result cache counters
//	POST   /api/v1/cache/invalidate     drop cached results
//	GET    /api/v1/analytics            live search analytics
//	GET    /api/v1/analytics/snapshot   last persisted analytics
//	GET    /health/live, /health/ready  probes
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → RateLimit → Timeout → mux
func New(opts Options) http.Handler {
	api := http.NewServeMux()
	opts.Search.Register(api)
	if opts.Analytics != nil {
		api.HandleFunc("GET /api/v1/analytics", opts.Analytics.Stats)
		api.HandleFunc("GET /api/v1/analytics/snapshot", opts.Analytics.Snapshot)
	}
	if opts.Health != nil {
		api.HandleFunc("GET /health/live", opts.Health.LiveHandler())
		api.HandleFunc("GET /health/ready", opts.Health.ReadyHandler())
	}

	// Rebuilds carry their own deadline.
	root := http.NewServeMux()
	root.Handle("/", middleware.Timeout(opts.RequestTimeout)(api))
	root.HandleFunc("POST /api/v1/index/rebuild", opts.Search.Rebuild)

	var chain http.Handler = root
	if opts.Limiter != nil {
		chain = middleware.RateLimit(opts.Limiter, opts.Metrics)(chain)
	}
	if len(opts.CORSOrigins) > 0 {
		chain = middleware.CORS(middleware.DefaultCORSConfig(opts.CORSOrigins))(chain)
	}
	if opts.Metrics != nil {
		chain = middleware.Metrics(opts.Metrics)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}
