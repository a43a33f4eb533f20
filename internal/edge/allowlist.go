// Package edge implementa el filtro de autorización del borde y el ruteo
// hacia los servicios internos.
//
// Todo lo que no matchea la allow-list requiere "Authorization: Bearer".
// El token se valida contra el servicio de tokens (RemoteVerifier) o, si el
// borde tiene el secreto compartido, en proceso (LocalVerifier).
package edge

import "strings"

// DefaultAllowList son los paths públicos del despliegue de referencia:
// emisión/validación de tokens, health y assets estáticos.
var DefaultAllowList = []string{
	"/auth/token",
	"/auth/validate",
	"/readyz",
	"/healthz",
	"/static/",
	"/favicon.ico",
}

// AllowList es un set de substrings. Un path es público si CONTIENE alguna
// entrada; no es match exacto ni de prefijo, así que "/static/" también
// hace público "/api/static/x". El orden no importa.
type AllowList struct {
	entries []string
}

// NewAllowList descarta entradas vacías (un "" haría público todo).
func NewAllowList(entries []string) *AllowList {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return &AllowList{entries: out}
}

// Allowed reporta si path contiene alguna entrada.
func (a *AllowList) Allowed(path string) bool {
	if a == nil {
		return false
	}
	for _, e := range a.entries {
		if strings.Contains(path, e) {
			return true
		}
	}
	return false
}

// Entries retorna una copia de las entradas.
func (a *AllowList) Entries() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.entries...)
}
