package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "courier_ws_connections",
		Help: "Current number of active websocket connections",
	})
	WSMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_ws_messages_total",
		Help: "Total number of chat messages sent over websocket",
	})
	SessionsEvictedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "courier_sessions_evicted_total",
		Help: "Total number of sessions deactivated by the concurrent-session cap",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WSConnections, WSMessagesTotal, SessionsEvictedTotal, HTTPRequestsTotal, HTTPRequestDuration)
}

// Middleware records basic per-request metrics for Prometheus scraping.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"path":   path,
			"status": strconv.Itoa(ww.Status()),
		}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
