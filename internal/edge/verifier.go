package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/dropDatabas3/bizgate/internal/jwt"
)

// Headers que el borde agrega hacia upstream tras validar. Las copias que
// mande el cliente se borran siempre.
const (
	HeaderSubject     = "X-Auth-Subject"
	HeaderTenantClass = "X-Auth-Tenant-Class"
	// HeaderForwarded marca todo request que pasó por el proxy del borde.
	HeaderForwarded = "X-Edge-Forwarded"

	DefaultVerifyTimeout = 3 * time.Second
	DefaultValidatePath  = "/auth/validate"
)

// ErrUnauthorized cubre cualquier falla de verificación: token inválido,
// expirado, o que el servicio de tokens no haya respondido.
var ErrUnauthorized = errors.New("unauthorized")

// Principal es lo que el borde sabe del llamante tras validar.
type Principal struct {
	Subject     string
	TenantClass string
}

// Verifier valida un token crudo (sin el prefijo "Bearer ").
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// ─── Remote ───

// RemoteVerifierConfig configura la verificación vía red.
type RemoteVerifierConfig struct {
	BaseURL      string // URL del servicio de tokens
	ValidatePath string // default /auth/validate
	Timeout      time.Duration
	HTTP         *http.Client
}

// RemoteVerifier llama a GET {base}/auth/validate?token=. Solo un 200 es
// válido; cualquier otro status, timeout o error de red es ErrUnauthorized.
// No reintenta.
type RemoteVerifier struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
}

func NewRemoteVerifier(cfg RemoteVerifierConfig) (*RemoteVerifier, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("edge: invalid token service url %q", cfg.BaseURL)
	}
	if cfg.ValidatePath == "" {
		cfg.ValidatePath = DefaultValidatePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultVerifyTimeout
	}
	if cfg.HTTP == nil {
		cfg.HTTP = cleanhttp.DefaultPooledClient()
	}
	return &RemoteVerifier{
		endpoint: base + "/" + strings.TrimLeft(cfg.ValidatePath, "/"),
		timeout:  cfg.Timeout,
		http:     cfg.HTTP,
	}, nil
}

// Verify cancela la llamada si el cliente se desconecta (ctx del request).
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return Principal{}, fmt.Errorf("%w: validate returned %d", ErrUnauthorized, resp.StatusCode)
	}
	return Principal{
		Subject:     resp.Header.Get(HeaderSubject),
		TenantClass: resp.Header.Get(HeaderTenantClass),
	}, nil
}

// ─── Local ───

// TokenVerifier es la parte de verificación de *jwt.Signer.
type TokenVerifier interface {
	Verify(raw string) (*jwt.Claims, error)
}

// LocalVerifier valida en proceso con el secreto compartido, sin red.
type LocalVerifier struct {
	tokens TokenVerifier
}

func NewLocalVerifier(tokens TokenVerifier) *LocalVerifier {
	return &LocalVerifier{tokens: tokens}
}

func (v *LocalVerifier) Verify(_ context.Context, token string) (Principal, error) {
	claims, err := v.tokens.Verify(token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return Principal{Subject: claims.Subject, TenantClass: claims.TenantClass}, nil
}
