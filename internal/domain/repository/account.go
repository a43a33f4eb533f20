package repository

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/bizgate/internal/identity"
)

// AccountStatus es el estado de ciclo de vida de una cuenta.
type AccountStatus string

const (
	StatusNone     AccountStatus = "NONE"
	StatusActive   AccountStatus = "ACTIVE"
	StatusInactive AccountStatus = "INACTIVE"
	StatusPending  AccountStatus = "PENDING"
)

// ParseAccountStatus normaliza un status; vacío o desconocido => StatusNone.
func ParseAccountStatus(s string) AccountStatus {
	switch st := AccountStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusActive, StatusInactive, StatusPending:
		return st
	default:
		return StatusNone
	}
}

// Enabled reporta si la cuenta puede autenticarse.
func (s AccountStatus) Enabled() bool { return s == StatusActive }

// Account es el principal tal como lo guarda el servicio de dominio dueño de
// su clase de tenant. El core de auth solo lee cuentas y escribe el último token.
type Account struct {
	Username     string               `json:"username"`
	TenantClass  identity.TenantClass `json:"tenantClass"`
	PasswordHash string               `json:"passwordHash"`
	Token        *string              `json:"token,omitempty"`
	Status       AccountStatus        `json:"status"`
	CreatedAt    time.Time            `json:"createdAt,omitempty"`
	UpdatedAt    time.Time            `json:"updatedAt,omitempty"`
}

// CreateAccountInput contiene los datos para crear una cuenta.
type CreateAccountInput struct {
	Username     string
	PasswordHash string
	Status       AccountStatus
}

// AccountRepository es el contrato de almacenamiento del servicio de cuentas.
type AccountRepository interface {
	// GetByUsername retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// GetByToken busca la cuenta cuyo último token persistido es token.
	GetByToken(ctx context.Context, token string) (*Account, error)

	// SaveToken sobreescribe el último token de la cuenta.
	SaveToken(ctx context.Context, username, token string) error

	// Create retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, in CreateAccountInput) (*Account, error)
}
