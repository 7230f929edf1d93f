package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WithHTTPMetrics records request counts and durations. Labels are method
// and status class only, to keep cardinality bounded.
func WithHTTPMetrics(next http.Handler, reg prometheus.Registerer) http.Handler {
	if reg == nil {
		return next
	}

	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "keel",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method and status class.",
	}, []string{"method", "class"})

	duration := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keel",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by method and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "class"})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		next.ServeHTTP(lrw, r)

		class := statusClass(lrw.status)
		requests.WithLabelValues(r.Method, class).Inc()
		duration.WithLabelValues(r.Method, class).Observe(time.Since(start).Seconds())
	})
}
