package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	"github.com/dropDatabas3/bizgate/internal/identity"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultAccountPath = "/accounts"
	DefaultTokenPath   = "/accounts/token"

	maxBody = 1 << 20
)

// HTTPClientConfig configura un HTTPClient.
type HTTPClientConfig struct {
	Name        string // para logs (ej: "admin-service")
	BaseURL     string
	AccountPath string // GET {base}{AccountPath}/{username}
	TokenPath   string // POST {base}{TokenPath} {"username","token"}
	Timeout     time.Duration
	HTTP        *http.Client // default: cleanhttp pooled client
}

// HTTPClient implementa AccountDirectory contra un servicio de dominio HTTP.
type HTTPClient struct {
	name        string
	base        string
	accountPath string
	tokenPath   string
	timeout     time.Duration
	http        *http.Client
}

// NewHTTPClient valida la config y aplica defaults.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("directory: invalid base url %q", cfg.BaseURL)
	}
	if cfg.AccountPath == "" {
		cfg.AccountPath = DefaultAccountPath
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = DefaultTokenPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTP == nil {
		cfg.HTTP = cleanhttp.DefaultPooledClient()
	}
	if cfg.Name == "" {
		cfg.Name = u.Host
	}
	return &HTTPClient{
		name:        cfg.Name,
		base:        base,
		accountPath: "/" + strings.Trim(cfg.AccountPath, "/"),
		tokenPath:   "/" + strings.Trim(cfg.TokenPath, "/"),
		timeout:     cfg.Timeout,
		http:        cfg.HTTP,
	}, nil
}

// accountDTO es el formato de cuenta del servicio de dominio. Algunos
// servicios exponen el hash como "password" en lugar de "passwordHash".
type accountDTO struct {
	Username     string  `json:"username"`
	TenantClass  string  `json:"tenantClass"`
	PasswordHash string  `json:"passwordHash"`
	Password     string  `json:"password"`
	Token        *string `json:"token"`
	Status       string  `json:"status"`
}

type saveTokenDTO struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// FetchAccount hace GET de la cuenta. 404 => ErrAccountNotFound; error de red,
// timeout o cualquier otro status => ErrUpstreamUnavailable.
func (c *HTTPClient) FetchAccount(ctx context.Context, username string) (*repository.Account, error) {
	log := logger.From(ctx).With(logger.Component("directory"), logger.Upstream(c.name), logger.Op("FetchAccount"))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base + c.accountPath + "/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("account fetch failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, c.name, err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrAccountNotFound
	case resp.StatusCode != http.StatusOK:
		log.Warn("account fetch unexpected status", logger.Status(resp.StatusCode))
		return nil, fmt.Errorf("%w: %s: status %d", ErrUpstreamUnavailable, c.name, resp.StatusCode)
	}

	var dto accountDTO
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&dto); err != nil {
		log.Warn("account decode failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %s: decode: %v", ErrUpstreamUnavailable, c.name, err)
	}

	acc := &repository.Account{
		Username:     dto.Username,
		PasswordHash: dto.PasswordHash,
		Token:        dto.Token,
		Status:       repository.ParseAccountStatus(dto.Status),
	}
	if acc.PasswordHash == "" {
		acc.PasswordHash = dto.Password
	}
	if dto.TenantClass != "" {
		acc.TenantClass = identity.TenantClass(strings.ToUpper(dto.TenantClass))
	}
	return acc, nil
}

// SaveToken persiste el último token emitido para username.
func (c *HTTPClient) SaveToken(ctx context.Context, username, token string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(saveTokenDTO{Username: username, Token: token})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+c.tokenPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, c.name, err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrAccountNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s: status %d", ErrUpstreamUnavailable, c.name, resp.StatusCode)
	}
	return nil
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxBody))
	_ = rc.Close()
}
