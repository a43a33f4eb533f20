// Package directory resuelve identidades namespaced contra el servicio de
// dominio dueño de cada clase de tenant.
//
// No hay cache local: cada login vuelve a leer la cuenta, así un cambio de
// password en el servicio de dominio aplica en el siguiente intento.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	"github.com/dropDatabas3/bizgate/internal/identity"
)

var (
	// ErrAccountNotFound: el servicio de dominio respondió "no existe".
	ErrAccountNotFound = errors.New("account not found")
	// ErrUpstreamUnavailable: el servicio no respondió, timeout o 5xx.
	// Es el único error de esta capa que tiene sentido reintentar.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrNoDirectory: no hay servicio registrado para la clase.
	ErrNoDirectory = errors.New("no directory for tenant class")
)

// AccountDirectory es el contrato remoto de un servicio de dominio.
type AccountDirectory interface {
	FetchAccount(ctx context.Context, username string) (*repository.Account, error)
	SaveToken(ctx context.Context, username, token string) error
}

// Resolver despacha por clase de tenant a su AccountDirectory. Agregar una
// clase nueva es agregar una entrada a la tabla.
type Resolver struct {
	dirs map[identity.TenantClass]AccountDirectory
}

// NewResolver copia la tabla recibida; no se modifica después.
func NewResolver(dirs map[identity.TenantClass]AccountDirectory) *Resolver {
	m := make(map[identity.TenantClass]AccountDirectory, len(dirs))
	for k, v := range dirs {
		if v != nil {
			m[k] = v
		}
	}
	return &Resolver{dirs: m}
}

// Directory retorna el directorio de una clase.
func (r *Resolver) Directory(c identity.TenantClass) (AccountDirectory, error) {
	d, ok := r.dirs[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDirectory, c)
	}
	return d, nil
}

// Resolve decodifica la identidad namespaced y trae la cuenta del servicio
// correspondiente. Errores: identity.ErrMalformedIdentity, ErrNoDirectory,
// ErrAccountNotFound, ErrUpstreamUnavailable.
func (r *Resolver) Resolve(ctx context.Context, namespaced string) (*repository.Account, error) {
	c, raw, err := identity.Decode(namespaced)
	if err != nil {
		return nil, err
	}
	dir, err := r.Directory(c)
	if err != nil {
		return nil, err
	}
	acc, err := dir.FetchAccount(ctx, raw)
	if err != nil {
		return nil, err
	}
	if acc.Username == "" {
		acc.Username = raw
	}
	if acc.TenantClass == "" {
		acc.TenantClass = c
	}
	return acc, nil
}
