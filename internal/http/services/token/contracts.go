// Package token contiene el servicio de emisión y validación de tokens.
package token

import (
	"context"
	"time"

	"github.com/dropDatabas3/bizgate/internal/directory"
	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	dto "github.com/dropDatabas3/bizgate/internal/http/dto/token"
	"github.com/dropDatabas3/bizgate/internal/identity"
	jwtx "github.com/dropDatabas3/bizgate/internal/jwt"
)

// TokenService define las operaciones del servicio de tokens.
type TokenService interface {
	// IssueToken autentica contra el servicio de dominio de la clase de
	// tenant y emite un token con el username crudo como subject.
	IssueToken(ctx context.Context, in dto.IssueRequest) (*dto.IssueResult, error)
	// ValidateToken verifica firma y expiración. Sin I/O.
	ValidateToken(ctx context.Context, raw string) (*jwtx.Claims, error)
}

// Signer es lo que el servicio usa de *jwt.Signer.
type Signer interface {
	Sign(subject string, ttl time.Duration, opts ...jwtx.SignOption) (jwtx.Token, error)
	Verify(raw string) (*jwtx.Claims, error)
}

// AccountResolver es lo que el servicio usa de *directory.Resolver.
type AccountResolver interface {
	Resolve(ctx context.Context, namespaced string) (*repository.Account, error)
	Directory(c identity.TenantClass) (directory.AccountDirectory, error)
}

// PasswordVerifier compara un password plano con el hash almacenado.
type PasswordVerifier func(plain, stored string) bool
