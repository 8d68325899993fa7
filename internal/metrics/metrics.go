package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// OrdersPlacedTotal counts order placement attempts by outcome
	// (placed, rejected, conflict, error).
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of order placement attempts",
		},
		[]string{"outcome"},
	)

	// ItemRejectionsTotal counts line-item problems on rejected order
	// requests, including late stock rejections inside the write transaction.
	ItemRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_item_rejections_total",
			Help: "Total number of line-item problems on rejected order requests",
		},
	)
)

// Middleware records request count and duration per chi route pattern.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := chi.RouteContext(r.Context()).RoutePattern()
			if endpoint == "" {
				endpoint = r.URL.Path
			}
			status := strconv.Itoa(ww.Status())

			RequestsTotal.WithLabelValues(service, r.Method, endpoint, status).Inc()
			RequestDuration.WithLabelValues(service, r.Method, endpoint).
				Observe(time.Since(start).Seconds())
		})
	}
}
