package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/classpoints/internal/metrics"
)

// Metrics records request durations by route pattern. It must wrap the
// mux itself so r.Pattern is set by the time the handler returns.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorderFor(w)

		next.ServeHTTP(rec, r)

		metrics.HTTPRequestDuration.
			WithLabelValues(routeOf(r), r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}
