package edge

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Decision es el estado terminal de un request en el filtro.
type Decision string

const (
	AllowedPublic   Decision = "allowed_public"
	AllowedToken    Decision = "allowed_token"
	RejectedMissing Decision = "rejected_missing"
	RejectedInvalid Decision = "rejected_invalid"
)

// Allowed reporta si la decisión deja pasar el request.
func (d Decision) Allowed() bool { return d == AllowedPublic || d == AllowedToken }

// ErrMissingAuthHeader: path protegido sin "Authorization: Bearer".
var ErrMissingAuthHeader = errors.New("missing bearer authorization header")

// Filter decide UNCHECKED -> ALLOWED | REJECTED para cada request.
// Es seguro para uso concurrente: allow-list y verifier no cambian tras
// construirlo.
type Filter struct {
	allow    *AllowList
	verifier Verifier
}

func NewFilter(allow *AllowList, verifier Verifier) *Filter {
	return &Filter{allow: allow, verifier: verifier}
}

// Decide aplica, en orden: allow-list, presencia del bearer, verificación.
// En AllowedToken retorna el Principal verificado.
func (f *Filter) Decide(ctx context.Context, r *http.Request) (Decision, Principal, error) {
	if f.allow.Allowed(r.URL.Path) {
		return AllowedPublic, Principal{}, nil
	}
	token, ok := BearerToken(r)
	if !ok {
		return RejectedMissing, Principal{}, ErrMissingAuthHeader
	}
	p, err := f.verifier.Verify(ctx, token)
	if err != nil {
		return RejectedInvalid, Principal{}, err
	}
	return AllowedToken, p, nil
}

// BearerToken extrae el token de "Authorization: Bearer <token>". El esquema
// se compara sin distinguir mayúsculas.
func BearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("Bearer ") || !strings.EqualFold(ah[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(ah[len("Bearer "):])
	return raw, raw != ""
}
