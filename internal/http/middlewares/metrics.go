package middlewares

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bizgate/internal/metrics"
)

// WithMetrics instrumenta requests con contadores, latencia e inflight.
// El label "path" usa el patrón de chi si existe (/accounts/{username}) o
// el path normalizado.
func WithMetrics(m *metrics.Metrics) Middleware {
	if m == nil {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := strings.ToUpper(r.Method)
			start := time.Now()
			rec := recorderFor(w)

			inflightPath := metrics.NormalizePath(r.URL.Path)
			m.HTTPInflight.WithLabelValues(method, inflightPath).Inc()
			defer func() {
				m.HTTPInflight.WithLabelValues(method, inflightPath).Dec()
				path := inflightPath
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					path = rc.RoutePattern()
				}
				m.HTTPDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
				m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
