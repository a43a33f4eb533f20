// Package identity codifica la clase de tenant dentro del identificador de sujeto.
//
// Un mismo formato de token sirve a dos stores de usuarios disjuntos: el
// identificador "namespaced" tiene la forma <clase>_<usuario>.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Separator separa la clase de tenant del username crudo.
const Separator = "_"

// TenantClass identifica una población de usuarios con store propio.
type TenantClass string

const (
	TenantAdmin TenantClass = "ADMIN"
	TenantUser  TenantClass = "USER"
)

// Classes es el conjunto cerrado de clases soportadas, en orden estable.
var Classes = []TenantClass{TenantAdmin, TenantUser}

var (
	ErrMalformedIdentity  = errors.New("malformed identity")
	ErrUnknownTenantClass = errors.New("unknown tenant class")
	ErrInvalidUsername    = errors.New("invalid username")
)

func (c TenantClass) String() string { return string(c) }

// Valid reporta si la clase pertenece al conjunto cerrado.
func (c TenantClass) Valid() bool {
	for _, k := range Classes {
		if k == c {
			return true
		}
	}
	return false
}

// ParseTenantClass normaliza (trim + upper) y valida una clase.
func ParseTenantClass(s string) (TenantClass, error) {
	c := TenantClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTenantClass, s)
	}
	return c, nil
}

// ValidateUsername rechaza usernames vacíos o que contengan el separador.
// Lo usan los servicios de dominio al crear cuentas; un username con "_"
// volvería ambiguo el decode.
func ValidateUsername(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	if strings.Contains(raw, Separator) {
		return fmt.Errorf("%w: must not contain %q", ErrInvalidUsername, Separator)
	}
	return nil
}

// Encode arma "<clase>_<usuario>".
func Encode(c TenantClass, raw string) string {
	return string(c) + Separator + raw
}

// Decode separa en el PRIMER separador. Falla con ErrMalformedIdentity si no
// hay separador, si alguna parte queda vacía o si la clase no es conocida.
func Decode(namespaced string) (TenantClass, string, error) {
	cls, raw, ok := strings.Cut(namespaced, Separator)
	if !ok || cls == "" || raw == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedIdentity, namespaced)
	}
	c := TenantClass(cls)
	if !c.Valid() {
		return "", "", fmt.Errorf("%w: unknown tenant class %q", ErrMalformedIdentity, cls)
	}
	return c, raw, nil
}
