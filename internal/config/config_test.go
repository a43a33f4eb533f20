package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	c, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", c.App.Env)
	require.Equal(t, ":8081", c.TokenService.Addr)
	require.Equal(t, ":8080", c.Edge.Addr)
	require.Equal(t, ":8082", c.Accounts.Addr)
	require.Equal(t, 30*time.Minute, c.TokenTTL())
	require.Equal(t, time.Duration(0), c.Leeway())
	require.Equal(t, 5*time.Second, c.WritebackTimeout())
	require.Equal(t, 5*time.Second, c.DirectoryTimeout())
	require.Equal(t, 3*time.Second, c.VerifyTimeout())
	require.Equal(t, "remote", c.Edge.Verify.Mode)
	require.Nil(t, c.Edge.AllowList)
	require.Equal(t, 10, c.Rate.Login.Limit)
	require.Equal(t, time.Minute, c.LoginWindow())
	require.Equal(t, "memory", c.Accounts.Store)
	require.Equal(t, "/metrics", c.Metrics.Path)
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	p := writeYAML(t, `
app:
  env: prod
jwt:
  secret: `+testSecret+`
  issuer: bizgate
  ttl: 15m
directory:
  timeout: 2s
  services:
    ADMIN:
      base_url: http://admin-svc:9000
    USER:
      base_url: http://user-svc:9000
      account_path: /v1/accounts
edge:
  allow_list: ["/public"]
  routes:
    - prefix: /api
      upstream: http://api:9000
  verify:
    mode: local
`)
	c, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, "prod", c.App.Env)
	require.Equal(t, "bizgate", c.JWT.Issuer)
	require.Equal(t, 15*time.Minute, c.TokenTTL())
	require.Equal(t, 2*time.Second, c.DirectoryTimeout())
	require.Equal(t, "/accounts", c.Directory.Services["ADMIN"].AccountPath)
	require.Equal(t, "/accounts/token", c.Directory.Services["ADMIN"].TokenPath)
	require.Equal(t, "/v1/accounts", c.Directory.Services["USER"].AccountPath)
	require.Equal(t, []string{"/public"}, c.Edge.AllowList)
	require.Equal(t, []EdgeRoute{{Prefix: "/api", Upstream: "http://api:9000"}}, c.Edge.Routes)
	require.Equal(t, "local", c.Edge.Verify.Mode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeYAML(t, `
jwt:
  secret: short
  ttl: 15m
`)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("BIZGATE_JWT_TTL", "45m")
	t.Setenv("BIZGATE_DIRECTORY_ADMIN_URL", "http://admin:9000")
	t.Setenv("BIZGATE_EDGE_ALLOW_LIST", "/a, ,/b")
	t.Setenv("BIZGATE_EDGE_ROUTES", "/users=http://users:9000; /admin=http://admin:9000")
	t.Setenv("BIZGATE_RATE_ENABLED", "true")
	t.Setenv("BIZGATE_RATE_LOGIN_LIMIT", "3")
	t.Setenv("BIZGATE_RATE_TRUSTED_PROXIES", "127.0.0.1, 10.0.0.0/8")

	c, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, testSecret, c.JWT.Secret)
	require.Equal(t, 45*time.Minute, c.TokenTTL())
	require.Equal(t, "http://admin:9000", c.Directory.Services["ADMIN"].BaseURL)
	require.Equal(t, "/accounts", c.Directory.Services["ADMIN"].AccountPath)
	require.Equal(t, []string{"/a", "/b"}, c.Edge.AllowList)
	require.Equal(t, []EdgeRoute{
		{Prefix: "/admin", Upstream: "http://admin:9000"},
		{Prefix: "/users", Upstream: "http://users:9000"},
	}, c.Edge.Routes)
	require.True(t, c.Rate.Enabled)
	require.Equal(t, 3, c.Rate.Login.Limit)
	require.Equal(t, []string{"127.0.0.1", "10.0.0.0/8"}, c.Rate.TrustedProxies)
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")

	_, err := Load("")
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "jwt.secret")
}

func TestValidate_CollectsAll(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	p := writeYAML(t, `
jwt:
  ttl: nope
directory:
  services:
    GUEST:
      base_url: ftp://x
edge:
  verify:
    mode: magic
rate:
  backend: memcached
  trusted_proxies: ["10.0.0.0/8", "edge-host"]
accounts:
  store: postgres
`)
	_, err := Load(p)
	require.ErrorIs(t, err, ErrInvalidConfig)
	msg := err.Error()
	for _, want := range []string{
		"jwt.ttl",
		"unknown tenant class \"GUEST\"",
		"directory.services.GUEST.base_url",
		"edge.verify.mode",
		"rate.backend",
		"rate.trusted_proxies[1]",
		"accounts.postgres.dsn",
	} {
		require.True(t, strings.Contains(msg, want), "missing %q in %s", want, msg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestParseKVList(t *testing.T) {
	got := parseKVList(" a=1 ; b = 2;;=x;c=", ";")
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
	require.Empty(t, parseKVList("  ", ";"))
}
