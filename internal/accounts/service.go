// Package accounts es un servicio de dominio de referencia: guarda las
// cuentas de UNA clase de tenant y expone el contrato que consume
// directory.HTTPClient (lookup por username y write-back del token).
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	"github.com/dropDatabas3/bizgate/internal/identity"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
	"github.com/dropDatabas3/bizgate/internal/security/password"
)

var (
	ErrInvalidUsername = identity.ErrInvalidUsername
	ErrEmptyToken      = errors.New("empty token")
)

// CreateRequest son los datos de alta de una cuenta.
type CreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Status   string `json:"status,omitempty"` // default ACTIVE
}

// Deps contiene las dependencias del servicio de cuentas.
type Deps struct {
	Repo        repository.AccountRepository
	TenantClass identity.TenantClass
	Hash        password.Params
	Policy      password.Policy
}

// Service implementa el lado "servicio de dominio" del protocolo.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.Hash == (password.Params{}) {
		deps.Hash = password.Default
	}
	return &Service{deps: deps}
}

// Get retorna la cuenta con su hash. repository.ErrNotFound si no existe.
func (s *Service) Get(ctx context.Context, username string) (*repository.Account, error) {
	acc, err := s.deps.Repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	acc.TenantClass = s.deps.TenantClass
	return acc, nil
}

// GetByToken es el lookup que usan otros flujos con el último token guardado.
func (s *Service) GetByToken(ctx context.Context, token string) (*repository.Account, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	acc, err := s.deps.Repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	acc.TenantClass = s.deps.TenantClass
	return acc, nil
}

// SaveToken sobreescribe el último token. Dos emisiones concurrentes para la
// misma cuenta: gana la última escritura.
func (s *Service) SaveToken(ctx context.Context, username, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	return s.deps.Repo.SaveToken(ctx, username, token)
}

// Create da de alta una cuenta. El username no puede contener el separador
// de namespace ("_"): la identidad ADMIN_a_b sería ambigua.
func (s *Service) Create(ctx context.Context, in CreateRequest) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("accounts"), logger.Op("Create"))

	username := strings.TrimSpace(in.Username)
	if err := identity.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := s.deps.Policy.Check(in.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	status := repository.StatusActive
	if in.Status != "" {
		if status = repository.ParseAccountStatus(in.Status); status == repository.StatusNone && !strings.EqualFold(in.Status, "NONE") {
			return nil, fmt.Errorf("%w: unknown status %q", repository.ErrInvalidInput, in.Status)
		}
	}

	hash, err := password.Hash(s.deps.Hash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	acc, err := s.deps.Repo.Create(ctx, repository.CreateAccountInput{
		Username:     username,
		PasswordHash: hash,
		Status:       status,
	})
	if err != nil {
		return nil, err
	}
	acc.TenantClass = s.deps.TenantClass
	log.Info("account created", logger.Username(username), logger.TenantClass(s.deps.TenantClass.String()))
	return acc, nil
}
