package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinSecretLen es el largo mínimo aceptado para el secreto HS256.
const MinSecretLen = 32

var ErrInvalidConfig = errors.New("invalid config")

// DirectoryService apunta al servicio de dominio de una clase de tenant.
type DirectoryService struct {
	BaseURL     string `yaml:"base_url"`
	AccountPath string `yaml:"account_path"`
	TokenPath   string `yaml:"token_path"`
}

// EdgeRoute mapea un prefijo de path a un upstream.
type EdgeRoute struct {
	Prefix   string `yaml:"prefix"`
	Upstream string `yaml:"upstream"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	TokenService struct {
		Addr             string `yaml:"addr"`
		WritebackTimeout string `yaml:"writeback_timeout"`
	} `yaml:"token_service"`

	JWT struct {
		Secret string `yaml:"secret"`
		Issuer string `yaml:"issuer"`
		TTL    string `yaml:"ttl"`
		Leeway string `yaml:"leeway"`
	} `yaml:"jwt"`

	Directory struct {
		Timeout string `yaml:"timeout"`
		// clave: clase de tenant (ADMIN, USER)
		Services map[string]DirectoryService `yaml:"services"`
	} `yaml:"directory"`

	Edge struct {
		Addr string `yaml:"addr"`

		// nil usa edge.DefaultAllowList
		AllowList []string    `yaml:"allow_list"`
		Routes    []EdgeRoute `yaml:"routes"`
		Verify    struct {
			// remote (GET /auth/validate) | local (secreto compartido)
			Mode    string `yaml:"mode"`
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"verify"`
	} `yaml:"edge"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// memory | redis
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Login struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`

		// CIDRs o IPs de proxies (edge, LB) cuyo X-Forwarded-For se acepta.
		// Vacío: la IP es RemoteAddr.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"rate"`

	Accounts struct {
		Addr        string `yaml:"addr"`
		TenantClass string `yaml:"tenant_class"`

		// memory | postgres
		Store    string `yaml:"store"`
		Migrate  bool   `yaml:"migrate"`
		Postgres struct {
			DSN             string `yaml:"dsn"`
			MaxConns        int32  `yaml:"max_conns"`
			MinConns        int32  `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Password struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password"`
	} `yaml:"accounts"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load lee el YAML (si path no es vacío), aplica defaults, pisa con env
// y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.TokenService.Addr == "" {
		c.TokenService.Addr = ":8081"
	}
	if c.TokenService.WritebackTimeout == "" {
		c.TokenService.WritebackTimeout = "5s"
	}
	if c.JWT.TTL == "" {
		c.JWT.TTL = "30m"
	}
	if c.JWT.Leeway == "" {
		c.JWT.Leeway = "0s"
	}
	if c.Directory.Timeout == "" {
		c.Directory.Timeout = "5s"
	}
	for k, s := range c.Directory.Services {
		if s.AccountPath == "" {
			s.AccountPath = "/accounts"
		}
		if s.TokenPath == "" {
			s.TokenPath = "/accounts/token"
		}
		c.Directory.Services[k] = s
	}
	if c.Edge.Addr == "" {
		c.Edge.Addr = ":8080"
	}
	if c.Edge.Verify.Mode == "" {
		c.Edge.Verify.Mode = "remote"
	}
	if c.Edge.Verify.URL == "" {
		c.Edge.Verify.URL = "http://localhost:8081"
	}
	if c.Edge.Verify.Timeout == "" {
		c.Edge.Verify.Timeout = "3s"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "bizgate:rl:"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if c.Accounts.Addr == "" {
		c.Accounts.Addr = ":8082"
	}
	if c.Accounts.TenantClass == "" {
		c.Accounts.TenantClass = "USER"
	}
	if c.Accounts.Store == "" {
		c.Accounts.Store = "memory"
	}
	if c.Accounts.Postgres.MaxConns == 0 {
		c.Accounts.Postgres.MaxConns = 10
	}
	if c.Accounts.Password.MinLength == 0 {
		c.Accounts.Password.MinLength = 8
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("BIZGATE_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("BIZGATE_VERSION"); ok {
		c.App.Version = v
	}
	if v, ok := getEnvStr("BIZGATE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// token service
	if v, ok := getEnvStr("BIZGATE_TOKEN_ADDR"); ok {
		c.TokenService.Addr = v
	}
	if v, ok := getEnvDur("BIZGATE_WRITEBACK_TIMEOUT"); ok {
		c.TokenService.WritebackTimeout = v.String()
	}

	// jwt: JWT_SECRET se acepta sin prefijo para compartirlo entre procesos
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("BIZGATE_JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("BIZGATE_JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvDur("BIZGATE_JWT_TTL"); ok {
		c.JWT.TTL = v.String()
	}
	if v, ok := getEnvDur("BIZGATE_JWT_LEEWAY"); ok {
		c.JWT.Leeway = v.String()
	}

	// directory: BIZGATE_DIRECTORY_<CLASS>_URL
	if v, ok := getEnvDur("BIZGATE_DIRECTORY_TIMEOUT"); ok {
		c.Directory.Timeout = v.String()
	}
	for _, class := range []string{"ADMIN", "USER"} {
		if v, ok := getEnvStr("BIZGATE_DIRECTORY_" + class + "_URL"); ok {
			if c.Directory.Services == nil {
				c.Directory.Services = map[string]DirectoryService{}
			}
			s := c.Directory.Services[class]
			s.BaseURL = v
			if s.AccountPath == "" {
				s.AccountPath = "/accounts"
			}
			if s.TokenPath == "" {
				s.TokenPath = "/accounts/token"
			}
			c.Directory.Services[class] = s
		}
	}

	// edge
	if v, ok := getEnvStr("BIZGATE_EDGE_ADDR"); ok {
		c.Edge.Addr = v
	}
	if v, ok := getEnvCSV("BIZGATE_EDGE_ALLOW_LIST"); ok {
		c.Edge.AllowList = v
	}
	// formato "/api/users=http://users:9000;/api/admin=http://admin:9000"
	if m, ok := getEnvKVList("BIZGATE_EDGE_ROUTES", ";"); ok {
		prefixes := make([]string, 0, len(m))
		for p := range m {
			prefixes = append(prefixes, p)
		}
		sort.Strings(prefixes)
		c.Edge.Routes = c.Edge.Routes[:0]
		for _, p := range prefixes {
			c.Edge.Routes = append(c.Edge.Routes, EdgeRoute{Prefix: p, Upstream: m[p]})
		}
	}
	if v, ok := getEnvStr("BIZGATE_EDGE_VERIFY_MODE"); ok {
		c.Edge.Verify.Mode = v
	}
	if v, ok := getEnvStr("BIZGATE_EDGE_VERIFY_URL"); ok {
		c.Edge.Verify.URL = v
	}
	if v, ok := getEnvDur("BIZGATE_EDGE_VERIFY_TIMEOUT"); ok {
		c.Edge.Verify.Timeout = v.String()
	}

	// rate
	if v, ok := getEnvBool("BIZGATE_RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("BIZGATE_RATE_BACKEND"); ok {
		c.Rate.Backend = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvInt("BIZGATE_RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvDur("BIZGATE_RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v.String()
	}
	if v, ok := getEnvCSV("BIZGATE_RATE_TRUSTED_PROXIES"); ok {
		c.Rate.TrustedProxies = v
	}

	// accounts
	if v, ok := getEnvStr("BIZGATE_ACCOUNTS_ADDR"); ok {
		c.Accounts.Addr = v
	}
	if v, ok := getEnvStr("BIZGATE_ACCOUNTS_TENANT_CLASS"); ok {
		c.Accounts.TenantClass = v
	}
	if v, ok := getEnvStr("BIZGATE_ACCOUNTS_STORE"); ok {
		c.Accounts.Store = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Accounts.Postgres.DSN = v
	}
	if v, ok := getEnvStr("BIZGATE_ACCOUNTS_DSN"); ok {
		c.Accounts.Postgres.DSN = v
	}
	if v, ok := getEnvBool("BIZGATE_ACCOUNTS_MIGRATE"); ok {
		c.Accounts.Migrate = v
	}

	// metrics
	if v, ok := getEnvBool("BIZGATE_METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvStr("BIZGATE_METRICS_PATH"); ok {
		c.Metrics.Path = v
	}
}

// Validate revisa los valores críticos. Los errores se acumulan para
// reportar todo de una vez.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if len(c.JWT.Secret) < MinSecretLen {
		bad("jwt.secret must be at least %d bytes", MinSecretLen)
	}
	for name, v := range map[string]string{
		"token_service.writeback_timeout": c.TokenService.WritebackTimeout,
		"jwt.ttl":                         c.JWT.TTL,
		"jwt.leeway":                      c.JWT.Leeway,
		"directory.timeout":               c.Directory.Timeout,
		"edge.verify.timeout":             c.Edge.Verify.Timeout,
		"rate.login.window":               c.Rate.Login.Window,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			bad("%s: %q is not a duration", name, v)
		}
	}
	if d, err := time.ParseDuration(c.JWT.TTL); err == nil && d <= 0 {
		bad("jwt.ttl must be positive")
	}
	if c.Accounts.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Accounts.Postgres.ConnMaxLifetime); err != nil {
			bad("accounts.postgres.conn_max_lifetime: %q is not a duration", c.Accounts.Postgres.ConnMaxLifetime)
		}
	}

	for class, s := range c.Directory.Services {
		switch strings.ToUpper(class) {
		case "ADMIN", "USER":
		default:
			bad("directory.services: unknown tenant class %q", class)
		}
		if !isHTTPURL(s.BaseURL) {
			bad("directory.services.%s.base_url: %q", class, s.BaseURL)
		}
	}

	switch c.Edge.Verify.Mode {
	case "remote":
		if !isHTTPURL(c.Edge.Verify.URL) {
			bad("edge.verify.url: %q", c.Edge.Verify.URL)
		}
	case "local":
	default:
		bad("edge.verify.mode must be remote|local, got %q", c.Edge.Verify.Mode)
	}
	for i, r := range c.Edge.Routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			bad("edge.routes[%d].prefix must start with /", i)
		}
		if !isHTTPURL(r.Upstream) {
			bad("edge.routes[%d].upstream: %q", i, r.Upstream)
		}
	}

	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if c.Rate.Enabled && strings.TrimSpace(c.Rate.Redis.Addr) == "" {
			bad("rate.redis.addr required with backend=redis")
		}
	default:
		bad("rate.backend must be memory|redis, got %q", c.Rate.Backend)
	}
	if c.Rate.Login.Limit < 0 {
		bad("rate.login.limit must be >= 0")
	}
	for i, p := range c.Rate.TrustedProxies {
		if !isIPOrCIDR(p) {
			bad("rate.trusted_proxies[%d]: %q", i, p)
		}
	}

	switch strings.ToUpper(c.Accounts.TenantClass) {
	case "ADMIN", "USER":
	default:
		bad("accounts.tenant_class: unknown %q", c.Accounts.TenantClass)
	}
	switch c.Accounts.Store {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Accounts.Postgres.DSN) == "" {
			bad("accounts.postgres.dsn required with store=postgres")
		}
	default:
		bad("accounts.store must be memory|postgres, got %q", c.Accounts.Store)
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		bad("metrics.path must start with /")
	}

	return errors.Join(errs...)
}

// ---- Getters tipados (ya validados en Load) ----

func (c *Config) WritebackTimeout() time.Duration { return mustDur(c.TokenService.WritebackTimeout) }
func (c *Config) TokenTTL() time.Duration         { return mustDur(c.JWT.TTL) }
func (c *Config) Leeway() time.Duration           { return mustDur(c.JWT.Leeway) }
func (c *Config) DirectoryTimeout() time.Duration { return mustDur(c.Directory.Timeout) }
func (c *Config) VerifyTimeout() time.Duration    { return mustDur(c.Edge.Verify.Timeout) }
func (c *Config) LoginWindow() time.Duration      { return mustDur(c.Rate.Login.Window) }
func (c *Config) ConnMaxLifetime() time.Duration  { return mustDur(c.Accounts.Postgres.ConnMaxLifetime) }

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(s))
	return d
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isIPOrCIDR(s string) bool {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// parse env of form "k1=v1<sep>k2=v2" into map
func parseKVList(s, sep string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]string{}
	}
	items := strings.Split(s, sep)
	out := make(map[string]string, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		// split at first '='
		if i := strings.IndexRune(it, '='); i > 0 {
			k := strings.TrimSpace(it[:i])
			v := strings.TrimSpace(it[i+1:])
			if k != "" && v != "" {
				out[k] = v
			}
		}
	}
	return out
}

func getEnvKVList(key, sep string) (map[string]string, bool) {
	if s, ok := getEnvStr(key); ok {
		return parseKVList(s, sep), true
	}
	return nil, false
}
