package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request duration by route, method and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	// CheckoutOutcomes counts checkout steps by outcome
	// (initiated, in_progress, confirmed, idempotent, rejected, failed, cancelled).
	CheckoutOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_outcomes_total",
		Help: "Checkout steps by outcome",
	}, []string{"outcome"})

	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sign_ins_total",
		Help: "Sign-in attempts by method and result",
	}, []string{"method", "result"})

	NewsFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_news_fetches_total",
		Help: "Upstream news feed fetches by result",
	}, []string{"result"})

	ChatStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_chat_streams_total",
		Help: "Assistant streams by result",
	}, []string{"result"})
)

// Middleware records request latency labelled by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
