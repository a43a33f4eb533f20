package middlewares

import (
	"context"

	"github.com/dropDatabas3/bizgate/internal/edge"
)

type ctxKey string

const (
	ctxRequestIDKey ctxKey = "request_id"
	ctxPrincipalKey ctxKey = "principal"
)

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID obtiene el request ID del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}

// WithPrincipal inyecta el principal verificado por el filtro de borde.
func WithPrincipal(ctx context.Context, p edge.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey, p)
}

// GetPrincipal retorna el principal verificado, si el request trajo token.
func GetPrincipal(ctx context.Context) (edge.Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey).(edge.Principal)
	return p, ok
}
