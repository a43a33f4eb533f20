package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/bizgate/internal/edge"
	"github.com/dropDatabas3/bizgate/internal/http/errors"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

// WithInternalOnly rechaza con 403 los requests que llegan vía el proxy del
// borde (marca X-Edge-Forwarded o identidad X-Auth-*). Protege APIs que
// devuelven hashes de password aunque alguien las agregue a edge.routes.
func WithInternalOnly() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(edge.HeaderForwarded) != "" ||
				r.Header.Get(edge.HeaderSubject) != "" ||
				r.Header.Get(edge.HeaderTenantClass) != "" {
				logger.From(r.Context()).Warn("edge-forwarded request to internal API rejected",
					logger.Component("internal_only"))
				errors.WriteError(w, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
