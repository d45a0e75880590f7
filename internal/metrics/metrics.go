package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	stageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_transitions_total",
			Help: "Total number of pipeline stage transitions",
		},
		[]string{"item_type", "to_stage"},
	)

	couponRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_redemptions_total",
			Help: "Total number of coupon redemption attempts",
		},
		[]string{"outcome"},
	)

	limitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_limit_checks_total",
			Help: "Total number of plan limit checks",
		},
		[]string{"kind", "allowed"},
	)

	leadsImportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_leads_imported_total",
			Help: "Total number of leads imported from the business registry",
		},
	)
)

// RecordStageTransition increments the stage transition counter
func RecordStageTransition(itemType, toStage string) {
	stageTransitionsTotal.WithLabelValues(itemType, toStage).Inc()
}

// RecordRedemption increments the redemption counter.
// Outcome is one of "redeemed", "already_used", "expired", "error".
func RecordRedemption(outcome string) {
	couponRedemptionsTotal.WithLabelValues(outcome).Inc()
}

// RecordLimitCheck increments the limit check counter
func RecordLimitCheck(kind string, allowed bool) {
	limitChecksTotal.WithLabelValues(kind, strconv.FormatBool(allowed)).Inc()
}

// RecordLeadsImported adds to the imported leads counter
func RecordLeadsImported(count int) {
	leadsImportedTotal.Add(float64(count))
}

// Handler returns the prometheus scrape endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments HTTP requests with request count and duration.
// The chi route pattern is used as the label to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
