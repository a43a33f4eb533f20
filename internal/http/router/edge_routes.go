package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/bizgate/internal/edge"
	healthctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/health"
	mw "github.com/dropDatabas3/bizgate/internal/http/middlewares"
	"github.com/dropDatabas3/bizgate/internal/metrics"
)

// EdgeRouterDeps contiene las dependencias del borde.
type EdgeRouterDeps struct {
	Filter      *edge.Filter
	Proxy       http.Handler // normalmente *edge.Router
	Health      *healthctrl.HealthController
	Metrics     *metrics.Metrics
	MetricsPath string
}

// NewEdgeRouter arma el borde. /readyz y /metrics los sirve el propio borde
// sin pasar por el filtro; todo lo demás pasa por RequireEdgeAuth y luego
// por el proxy.
func NewEdgeRouter(deps EdgeRouterDeps) http.Handler {
	r := newBaseRouter(deps.Metrics)

	if deps.Health != nil {
		r.Get("/readyz", deps.Health.Readyz)
	}
	mountMetrics(r, deps.Metrics, deps.MetricsPath)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireEdgeAuth(deps.Filter, deps.Metrics))
		r.Handle("/*", deps.Proxy)
	})
	return r
}
