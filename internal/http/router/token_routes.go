package router

import (
	"net/http"

	healthctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/health"
	tokenctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/token"
	mw "github.com/dropDatabas3/bizgate/internal/http/middlewares"
	"github.com/dropDatabas3/bizgate/internal/metrics"
	"github.com/dropDatabas3/bizgate/internal/rate"
)

// TokenRouterDeps contiene las dependencias del servicio de tokens.
type TokenRouterDeps struct {
	Controllers *tokenctrl.Controllers
	Health      *healthctrl.HealthController
	Metrics     *metrics.Metrics
	MetricsPath string
	Limiter     rate.Limiter // opcional: solo aplica a POST /auth/token
	// Proxies cuyo X-Forwarded-For define la IP del rate limit (típicamente el edge).
	TrustedProxies mw.TrustedProxies
}

// NewTokenRouter registra:
//
//	POST /auth/token     emisión (rate limited por IP)
//	GET  /auth/validate  validación
//	GET  /readyz
func NewTokenRouter(deps TokenRouterDeps) http.Handler {
	r := newBaseRouter(deps.Metrics)
	c := deps.Controllers.Token

	r.With(mw.WithRateLimit(mw.RateLimitConfig{
		Limiter: deps.Limiter,
		KeyFunc: mw.TrustedIPPathRateKey(deps.TrustedProxies),
	})).
		Post("/auth/token", c.Issue)
	r.Get("/auth/validate", c.Validate)

	if deps.Health != nil {
		r.Get("/readyz", deps.Health.Readyz)
	}
	mountMetrics(r, deps.Metrics, deps.MetricsPath)
	return r
}
