package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/metrics"
)

// routes are the paths reported by name; anything else is labelled
// "other" so scanners cannot inflate label cardinality.
var routes = map[string]struct{}{
	"/api/v1/search":             {},
	"/api/v1/related":            {},
	"/api/v1/index/stats":        {},
	"/api/v1/index/rebuild":      {},
	"/api/v1/cache/stats":        {},
	"/api/v1/cache/invalidate":   {},
	"/api/v1/analytics":          {},
	"/api/v1/analytics/snapshot": {},
	"/health":                    {},
	"/health/live":               {},
	"/health/ready":              {},
}

func routeLabel(path string) string {
	if _, ok := routes[path]; ok {
		return path
	}
	return "other"
}

// Metrics counts requests by method, route and status, observes latency
// and tracks requests in flight.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r.URL.Path)
			rec := &statusRecorder{ResponseWriter: w}
			m.HTTPRequestsInFlight.Inc()
			start := time.Now()
			defer func() {
				m.HTTPRequestsInFlight.Dec()
				m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
				m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// statusRecorder remembers the first status written. Handlers that only
// call Write answered 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
