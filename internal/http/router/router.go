// Package router arma los handlers HTTP de cada servicio sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/bizgate/internal/http/errors"
	mw "github.com/dropDatabas3/bizgate/internal/http/middlewares"
	"github.com/dropDatabas3/bizgate/internal/metrics"
)

// newBaseRouter crea un chi.Router con la infra común: request id,
// logging, recover y métricas. 404/405 responden con el catálogo de errores.
func newBaseRouter(m *metrics.Metrics) chi.Router {
	r := chi.NewRouter()
	for _, h := range []mw.Middleware{
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(m),
	} {
		if h != nil {
			r.Use(h)
		}
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})
	return r
}

// mountMetrics expone /metrics si hay métricas configuradas.
func mountMetrics(r chi.Router, m *metrics.Metrics, path string) {
	if m == nil || path == "" {
		return
	}
	r.Method(http.MethodGet, path, m.Handler())
}
