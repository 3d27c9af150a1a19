package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. Register against a dedicated
// prometheus.Registerer so tests can use throwaway registries.
type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	StockConflicts  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkout",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "orders_created_total",
			Help:      "Orders successfully created.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled by their owner.",
		}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkout",
			Name:      "stock_conflicts_total",
			Help:      "Order creations rejected because stock ran out.",
		}),
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.OrdersCreated, m.OrdersCancelled, m.StockConflicts)
	return m
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		m.Requests.WithLabelValues(pattern, strconv.Itoa(ww.Status())).Inc()
		m.LatencyMS.WithLabelValues(pattern).Observe(float64(time.Since(start).Milliseconds()))
	})
}

// Handler exposes the registry over HTTP.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
