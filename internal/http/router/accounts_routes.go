package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	accountsctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/accounts"
	healthctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/health"
	mw "github.com/dropDatabas3/bizgate/internal/http/middlewares"
	"github.com/dropDatabas3/bizgate/internal/metrics"
)

// AccountsRouterDeps contiene las dependencias del servicio de cuentas.
type AccountsRouterDeps struct {
	Accounts    *accountsctrl.AccountsController
	Health      *healthctrl.HealthController
	Metrics     *metrics.Metrics
	MetricsPath string
}

// NewAccountsRouter registra el contrato de servicio de dominio. Es una API
// interna: /accounts devuelve hashes y rechaza todo lo que pase por el borde.
//
//	GET  /accounts/{username}
//	GET  /accounts?token=
//	POST /accounts/token
//	POST /accounts
func NewAccountsRouter(deps AccountsRouterDeps) http.Handler {
	r := newBaseRouter(deps.Metrics)
	c := deps.Accounts

	r.Route("/accounts", func(r chi.Router) {
		r.Use(mw.WithInternalOnly())
		r.Get("/", c.GetByToken)
		r.Post("/", c.Create)
		r.Post("/token", c.SaveToken)
		r.Get("/{username}", c.Get)
	})

	if deps.Health != nil {
		r.Get("/readyz", deps.Health.Readyz)
	}
	mountMetrics(r, deps.Metrics, deps.MetricsPath)
	return r
}
