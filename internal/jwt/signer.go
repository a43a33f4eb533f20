package jwt

import (
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL es la vida por defecto de un token emitido.
const DefaultTTL = 30 * time.Minute

// Errores de verificación. Todos matchean ErrInvalidToken con errors.Is, así
// los callers que no necesitan distinguir pueden colapsarlos en uno.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = &verifyError{kind: "invalid_signature"}
	ErrExpired          = &verifyError{kind: "expired"}
	ErrMalformedToken   = &verifyError{kind: "malformed"}

	ErrEmptySubject = errors.New("empty subject")
	ErrEmptySecret  = errors.New("empty signing secret")
)

type verifyError struct{ kind string }

func (e *verifyError) Error() string        { return "invalid token: " + e.kind }
func (e *verifyError) Is(target error) bool { return target == ErrInvalidToken }

// Claims son las claims de un token de sesión. sub, iat y exp son obligatorias;
// tcl (clase de tenant) y jti son extras.
type Claims struct {
	TenantClass string `json:"tcl,omitempty"`
	jwtv5.RegisteredClaims
}

// Token es un token firmado junto con sus claims principales.
type Token struct {
	Raw       string
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SignerConfig configura un Signer. El secreto se inyecta al arrancar el
// proceso y no rota en runtime.
type SignerConfig struct {
	Secret string
	Issuer string        // opcional; si se setea también se exige al verificar
	TTL    time.Duration // default DefaultTTL
	Leeway time.Duration // tolerancia de reloj al verificar exp/iat
	Now    func() time.Time
}

// Signer firma y verifica tokens HS256 con un secreto compartido. No guarda
// estado mutable: es seguro para uso concurrente.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwtv5.Parser
	now    func() time.Time
}

// NewSigner construye un Signer a partir de su configuración.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrEmptySecret
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
		jwtv5.WithLeeway(cfg.Leeway),
		jwtv5.WithTimeFunc(cfg.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(cfg.Issuer))
	}
	return &Signer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		parser: jwtv5.NewParser(opts...),
		now:    cfg.Now,
	}, nil
}

// TTL devuelve la vida configurada de los tokens.
func (s *Signer) TTL() time.Duration { return s.ttl }

// SignOption agrega claims opcionales al token.
type SignOption func(*Claims)

// WithTenantClass agrega la claim tcl.
func WithTenantClass(c string) SignOption {
	return func(cl *Claims) { cl.TenantClass = c }
}

// Sign emite un token para subject con iat = now y exp = now + ttl.
// Si ttl <= 0 usa el TTL configurado.
func (s *Signer) Sign(subject string, ttl time.Duration, opts ...SignOption) (Token, error) {
	if strings.TrimSpace(subject) == "" {
		return Token{}, ErrEmptySubject
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	exp := now.Add(ttl)

	claims := Claims{
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	for _, o := range opts {
		o(&claims)
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Raw:       signed,
		Subject:   subject,
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify valida firma, estructura y expiración y devuelve las claims.
func (s *Signer) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(raw, claims, func(t *jwtv5.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

// classify traduce errores de golang-jwt a nuestros tres tipos.
func classify(err error) error {
	switch {
	case errors.Is(err, jwtv5.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwtv5.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
