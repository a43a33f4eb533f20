// Package token contiene los controllers de emisión y validación de tokens.
package token

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/bizgate/internal/edge"
	dto "github.com/dropDatabas3/bizgate/internal/http/dto/token"
	httperrors "github.com/dropDatabas3/bizgate/internal/http/errors"
	svc "github.com/dropDatabas3/bizgate/internal/http/services/token"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

const maxIssueBodySize = 16 * 1024

// ValidMessage es el body de GET /auth/validate cuando el token es válido.
const ValidMessage = "Token is valid"

// TokenController maneja /auth/token y /auth/validate.
type TokenController struct {
	service svc.TokenService
	now     func() time.Time
}

// NewTokenController crea el controller.
func NewTokenController(service svc.TokenService) *TokenController {
	return &TokenController{service: service, now: time.Now}
}

// Issue maneja POST /auth/token
func (c *TokenController) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Issue"))

	r.Body = http.MaxBytesReader(w, r.Body, maxIssueBodySize)
	defer r.Body.Close()

	var req dto.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	result, err := c.service.IssueToken(ctx, req)
	if err != nil {
		log.Debug("token issue failed", logger.Err(err))
		writeIssueError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httperrors.WriteJSON(w, http.StatusOK, dto.IssueResponse{
		Token:          result.Token.Raw,
		TokenType:      "Bearer",
		ExpiresAt:      result.Token.ExpiresAt.UTC(),
		ExpiresIn:      int64(result.Token.ExpiresAt.Sub(c.now()).Seconds()),
		TokenPersisted: result.TokenPersisted,
	})
}

// Validate maneja GET /auth/validate?token=
//
// Con 200 devuelve el texto plano "Token is valid" y los headers
// X-Auth-Subject / X-Auth-Tenant-Class, que usa el RemoteVerifier del borde.
func (c *TokenController) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	claims, err := c.service.ValidateToken(ctx, raw)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrTokenInvalid)
		return
	}

	w.Header().Set(edge.HeaderSubject, claims.Subject)
	if claims.TenantClass != "" {
		w.Header().Set(edge.HeaderTenantClass, claims.TenantClass)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ValidMessage)
}

// ─── Helpers ───

func writeIssueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrMissingFields):
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("tenantClass, username y password son obligatorios"))

	case errors.Is(err, svc.ErrInvalidAccess):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)

	case errors.Is(err, svc.ErrUpstreamUnavailable):
		w.Header().Set("Retry-After", "1")
		httperrors.WriteError(w, httperrors.ErrUpstreamUnavailable)

	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
	}
}
