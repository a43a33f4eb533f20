package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/bizgate/internal/http/errors"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
	"github.com/dropDatabas3/bizgate/internal/rate"
)

// RateKeyFunc define cómo generar la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPPathRateKey separa límites por endpoint sin leer el body. Usa RemoteAddr:
// X-Forwarded-For lo controla el cliente.
func IPPathRateKey(r *http.Request) string {
	return remoteHost(r) + "|" + r.URL.Path
}

// TrustedIPPathRateKey es IPPathRateKey detrás de proxies (el edge, un LB):
// la IP sale de X-Forwarded-For solo si el peer está en tp.
func TrustedIPPathRateKey(tp TrustedProxies) RateKeyFunc {
	return func(r *http.Request) string {
		return tp.ClientIP(r) + "|" + r.URL.Path
	}
}

// RateLimitConfig configura WithRateLimit.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc
}

// WithRateLimit responde 429 cuando se excede el límite. Si el limiter
// falla (ej: Redis caído) el request pasa.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPPathRateKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := cfg.Limiter.Allow(r.Context(), cfg.KeyFunc(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter error, allowing request",
					logger.Component("rate"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
