package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/bizgate/internal/directory"
	dto "github.com/dropDatabas3/bizgate/internal/http/dto/token"
	"github.com/dropDatabas3/bizgate/internal/identity"
	jwtx "github.com/dropDatabas3/bizgate/internal/jwt"
	"github.com/dropDatabas3/bizgate/internal/metrics"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
	"github.com/dropDatabas3/bizgate/internal/security/password"
)

const DefaultWritebackTimeout = 5 * time.Second

// Errores del servicio
var (
	ErrMissingFields = errors.New("missing required fields")
	// ErrInvalidAccess agrupa cuenta inexistente, password incorrecto, cuenta
	// no activa e identidad mal formada. No se distinguen hacia afuera.
	ErrInvalidAccess = errors.New("invalid access")
	// ErrUpstreamUnavailable: el servicio de dominio no respondió al
	// resolver la cuenta. Es reintentable.
	ErrUpstreamUnavailable = directory.ErrUpstreamUnavailable
	ErrTokenIssueFailed    = errors.New("failed to issue token")
)

// Deps contiene las dependencias del token service.
type Deps struct {
	Resolver AccountResolver
	Signer   Signer
	// TTL de los tokens emitidos; <= 0 usa el TTL del Signer.
	TTL time.Duration
	// VerifyPassword default: password.Verify (argon2id o bcrypt).
	VerifyPassword PasswordVerifier
	// DummyHash se verifica cuando la cuenta no existe (o no tiene hash),
	// para que el tiempo de respuesta no revele el username. Default:
	// password.DummyHash.
	DummyHash        string
	WritebackTimeout time.Duration
	Metrics          *metrics.Metrics
}

type tokenService struct {
	deps Deps
}

// NewTokenService crea el servicio.
func NewTokenService(deps Deps) TokenService {
	if deps.VerifyPassword == nil {
		deps.VerifyPassword = password.Verify
	}
	if deps.DummyHash == "" {
		deps.DummyHash = password.DummyHash
	}
	if deps.WritebackTimeout <= 0 {
		deps.WritebackTimeout = DefaultWritebackTimeout
	}
	return &tokenService{deps: deps}
}

func (s *tokenService) IssueToken(ctx context.Context, in dto.IssueRequest) (*dto.IssueResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("token.issue"),
		logger.Op("IssueToken"),
	)

	username := strings.TrimSpace(in.Username)
	if strings.TrimSpace(in.TenantClass) == "" || username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	// Paso 1: clase de tenant e identidad namespaced
	class, err := identity.ParseTenantClass(in.TenantClass)
	if err != nil {
		log.Debug("unknown tenant class", logger.Err(err))
		s.deps.Metrics.RecordIssue("unknown", metrics.ResultRejected)
		return nil, ErrInvalidAccess
	}
	log = log.With(logger.TenantClass(class.String()), logger.Username(username))
	if err := identity.ValidateUsername(username); err != nil {
		log.Debug("invalid username", logger.Err(err))
		s.deps.Metrics.RecordIssue(class.String(), metrics.ResultRejected)
		return nil, ErrInvalidAccess
	}

	// Paso 2: resolver cuenta y verificar credenciales. Todo rechazo paga un
	// hash: cuenta inexistente, inactiva o password incorrecto tardan lo mismo.
	acc, err := s.deps.Resolver.Resolve(ctx, identity.Encode(class, username))
	if err != nil {
		if errors.Is(err, directory.ErrUpstreamUnavailable) {
			log.Warn("account resolution unavailable", logger.Err(err))
			s.deps.Metrics.RecordIssue(class.String(), metrics.ResultUnavailable)
			return nil, err
		}
		s.deps.VerifyPassword(in.Password, s.deps.DummyHash)
		log.Debug("account resolution failed", logger.Err(err))
		s.deps.Metrics.RecordIssue(class.String(), metrics.ResultRejected)
		return nil, ErrInvalidAccess
	}
	// el estado se mira después del hash
	stored := acc.PasswordHash
	if stored == "" {
		stored = s.deps.DummyHash
	}
	passOK := s.deps.VerifyPassword(in.Password, stored)
	if !acc.Status.Enabled() {
		log.Info("account not active", logger.String("status", string(acc.Status)))
		s.deps.Metrics.RecordIssue(class.String(), metrics.ResultRejected)
		return nil, ErrInvalidAccess
	}
	if !passOK {
		log.Debug("password check failed")
		s.deps.Metrics.RecordIssue(class.String(), metrics.ResultRejected)
		return nil, ErrInvalidAccess
	}

	// Paso 3: firmar con el username crudo
	tok, err := s.deps.Signer.Sign(username, s.deps.TTL, jwtx.WithTenantClass(class.String()))
	if err != nil {
		log.Error("token signing failed", logger.Err(err))
		s.deps.Metrics.RecordIssue(class.String(), metrics.ResultError)
		return nil, fmt.Errorf("%w: %v", ErrTokenIssueFailed, err)
	}
	log = log.With(logger.TokenID(tok.ID))
	s.deps.Metrics.RecordIssue(class.String(), metrics.ResultIssued)

	// Paso 4: write-back best-effort
	persisted := s.writeBack(ctx, class, username, tok.Raw)
	log.Info("token issued", logger.Bool("persisted", persisted))

	return &dto.IssueResult{Token: tok, TenantClass: class.String(), TokenPersisted: persisted}, nil
}

// writeBack guarda el token en el servicio de dominio una sola vez, sin
// reintentos. Corre con su propio timeout y no se cancela si el cliente
// se desconecta: el token ya fue emitido. Un error solo se loguea.
func (s *tokenService) writeBack(ctx context.Context, class identity.TenantClass, username, raw string) bool {
	log := logger.From(ctx).With(logger.Op("writeBack"), logger.TenantClass(class.String()), logger.Username(username))

	dir, err := s.deps.Resolver.Directory(class)
	if err != nil {
		log.Warn("token write-back skipped", logger.Err(err))
		s.deps.Metrics.RecordWriteback(false)
		return false
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.WritebackTimeout)
	defer cancel()
	if err := dir.SaveToken(wctx, username, raw); err != nil {
		log.Warn("token write-back failed", logger.Err(err))
		s.deps.Metrics.RecordWriteback(false)
		return false
	}
	s.deps.Metrics.RecordWriteback(true)
	return true
}

func (s *tokenService) ValidateToken(ctx context.Context, raw string) (*jwtx.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, jwtx.ErrMalformedToken
	}
	claims, err := s.deps.Signer.Verify(raw)
	if err != nil {
		logger.From(ctx).Debug("token validation failed",
			logger.Layer("service"), logger.Op("ValidateToken"), logger.Err(err))
		return nil, err
	}
	return claims, nil
}
