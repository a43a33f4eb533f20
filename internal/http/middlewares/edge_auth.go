package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/bizgate/internal/edge"
	"github.com/dropDatabas3/bizgate/internal/http/errors"
	"github.com/dropDatabas3/bizgate/internal/metrics"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

// RequireEdgeAuth aplica el filtro de borde antes del proxy.
//
// Siempre borra X-Auth-Subject / X-Auth-Tenant-Class que mande el cliente.
// Si el request pasa con token los vuelve a setear con el principal
// verificado, para que los servicios internos no revaliden.
func RequireEdgeAuth(f *edge.Filter, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(edge.HeaderSubject)
			r.Header.Del(edge.HeaderTenantClass)

			decision, p, err := f.Decide(r.Context(), r)
			m.RecordEdgeDecision(string(decision))

			log := logger.From(r.Context()).With(logger.Component("edge.filter"), logger.Decision(string(decision)))
			switch decision {
			case edge.AllowedPublic:
				next.ServeHTTP(w, r)

			case edge.AllowedToken:
				if p.Subject != "" {
					r.Header.Set(edge.HeaderSubject, p.Subject)
				}
				if p.TenantClass != "" {
					r.Header.Set(edge.HeaderTenantClass, p.TenantClass)
				}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))

			case edge.RejectedMissing:
				log.Debug("request rejected")
				w.Header().Set("WWW-Authenticate", `Bearer realm="bizgate"`)
				errors.WriteError(w, errors.ErrTokenMissing)

			default:
				log.Debug("request rejected", logger.Err(err))
				w.Header().Set("WWW-Authenticate", `Bearer realm="bizgate", error="invalid_token"`)
				errors.WriteError(w, errors.ErrTokenInvalid)
			}
		})
	}
}
