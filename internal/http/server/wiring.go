// Package server arma los tres procesos (token, edge, accounts) a partir de
// la configuración y los corre con shutdown ordenado.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/bizgate/internal/accounts"
	"github.com/dropDatabas3/bizgate/internal/config"
	"github.com/dropDatabas3/bizgate/internal/directory"
	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	"github.com/dropDatabas3/bizgate/internal/edge"
	accountsctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/accounts"
	healthctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/health"
	tokenctrl "github.com/dropDatabas3/bizgate/internal/http/controllers/token"
	mw "github.com/dropDatabas3/bizgate/internal/http/middlewares"
	"github.com/dropDatabas3/bizgate/internal/http/router"
	healthsvc "github.com/dropDatabas3/bizgate/internal/http/services/health"
	tokensvc "github.com/dropDatabas3/bizgate/internal/http/services/token"
	"github.com/dropDatabas3/bizgate/internal/identity"
	jwtx "github.com/dropDatabas3/bizgate/internal/jwt"
	"github.com/dropDatabas3/bizgate/internal/metrics"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
	"github.com/dropDatabas3/bizgate/internal/rate"
	"github.com/dropDatabas3/bizgate/internal/security/password"
	migrations "github.com/dropDatabas3/bizgate/migrations/postgres"
)

// Service names, usados en logs, health y el CLI.
const (
	ServiceToken    = "token"
	ServiceEdge     = "edge"
	ServiceAccounts = "accounts"
)

// Built es el resultado de armar un servicio.
type Built struct {
	Addr    string
	Handler http.Handler
	// Cleanup libera recursos (pools, clientes redis). Nunca es nil.
	Cleanup func() error
}

// Options permite inyectar el registry de Prometheus (tests).
type Options struct {
	Registerer prometheus.Registerer
}

func (o Options) registerer() prometheus.Registerer {
	if o.Registerer != nil {
		return o.Registerer
	}
	return prometheus.DefaultRegisterer
}

func noop() error { return nil }

func buildMetrics(cfg *config.Config, opts Options) (*metrics.Metrics, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}
	return metrics.New(opts.registerer())
}

// Build despacha por nombre de servicio.
func Build(ctx context.Context, name string, cfg *config.Config, opts Options) (*Built, error) {
	switch name {
	case ServiceToken:
		return BuildToken(ctx, cfg, opts)
	case ServiceEdge:
		return BuildEdge(ctx, cfg, opts)
	case ServiceAccounts:
		return BuildAccounts(ctx, cfg, opts)
	default:
		return nil, fmt.Errorf("unknown service %q", name)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// TOKEN SERVICE
// ═══════════════════════════════════════════════════════════════════════════════

// BuildToken arma el servicio de emisión: signer, resolver con un
// directory.HTTPClient por clase de tenant, rate limit de login y health.
func BuildToken(ctx context.Context, cfg *config.Config, opts Options) (*Built, error) {
	log := logger.From(ctx).With(logger.Component(ServiceToken), logger.Op("BuildToken"))

	m, err := buildMetrics(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	dirs := make(map[identity.TenantClass]directory.AccountDirectory, len(cfg.Directory.Services))
	var checks []healthsvc.Check
	for name, s := range cfg.Directory.Services {
		class, err := identity.ParseTenantClass(name)
		if err != nil {
			return nil, fmt.Errorf("directory.services: %w", err)
		}
		client, err := directory.NewHTTPClient(directory.HTTPClientConfig{
			Name:        strings.ToLower(string(class)) + "-service",
			BaseURL:     s.BaseURL,
			AccountPath: s.AccountPath,
			TokenPath:   s.TokenPath,
			Timeout:     cfg.DirectoryTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("directory %s: %w", class, err)
		}
		dirs[class] = client
		checks = append(checks, healthsvc.Check{
			Name: "directory:" + string(class),
			Fn:   httpCheck(strings.TrimRight(s.BaseURL, "/") + "/readyz"),
		})
	}
	if len(dirs) == 0 {
		log.Warn("no directory services configured, every issuance will be rejected")
	}

	limiter, closeLimiter, check, err := buildLimiter(cfg)
	if err != nil {
		return nil, err
	}
	trusted, err := mw.ParseTrustedProxies(cfg.Rate.TrustedProxies)
	if err != nil {
		_ = closeLimiter()
		return nil, err
	}
	if check != nil {
		checks = append(checks, *check)
	}

	tokens := tokensvc.NewTokenService(tokensvc.Deps{
		Resolver:         directory.NewResolver(dirs),
		Signer:           signer,
		TTL:              cfg.TokenTTL(),
		WritebackTimeout: cfg.WritebackTimeout(),
		Metrics:          m,
	})

	handler := router.NewTokenRouter(router.TokenRouterDeps{
		Controllers: tokenctrl.NewControllers(tokens),
		Health:      newHealth(ServiceToken, cfg, checks),
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
		Limiter:     limiter,

		TrustedProxies: trusted,
	})
	return &Built{Addr: cfg.TokenService.Addr, Handler: handler, Cleanup: closeLimiter}, nil
}

func newSigner(cfg *config.Config) (*jwtx.Signer, error) {
	signer, err := jwtx.NewSigner(jwtx.SignerConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.TokenTTL(),
		Leeway: cfg.Leeway(),
	})
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return signer, nil
}

// buildLimiter devuelve nil si rate está deshabilitado.
func buildLimiter(cfg *config.Config) (rate.Limiter, func() error, *healthsvc.Check, error) {
	if !cfg.Rate.Enabled || cfg.Rate.Login.Limit == 0 {
		return nil, noop, nil, nil
	}
	switch cfg.Rate.Backend {
	case "redis":
		client := rdb.NewClient(&rdb.Options{
			Addr: cfg.Rate.Redis.Addr,
			DB:   cfg.Rate.Redis.DB,
		})
		lim := rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Login.Limit, cfg.LoginWindow())
		// el limiter falla abierto: redis caído degrada, no tumba
		check := &healthsvc.Check{
			Name: "redis",
			Fn:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}
		return lim, client.Close, check, nil
	case "memory":
		return rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.LoginWindow()), noop, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("rate.backend %q", cfg.Rate.Backend)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// EDGE
// ═══════════════════════════════════════════════════════════════════════════════

// BuildEdge arma el borde: allow-list, verificador (remoto o local), tabla
// de rutas y proxy.
func BuildEdge(ctx context.Context, cfg *config.Config, opts Options) (*Built, error) {
	log := logger.From(ctx).With(logger.Component(ServiceEdge), logger.Op("BuildEdge"))

	m, err := buildMetrics(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	var (
		verifier edge.Verifier
		checks   []healthsvc.Check
	)
	switch cfg.Edge.Verify.Mode {
	case "local":
		signer, err := newSigner(cfg)
		if err != nil {
			return nil, err
		}
		verifier = edge.NewLocalVerifier(signer)
	default:
		rv, err := edge.NewRemoteVerifier(edge.RemoteVerifierConfig{
			BaseURL: cfg.Edge.Verify.URL,
			Timeout: cfg.VerifyTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("verifier: %w", err)
		}
		verifier = rv
		checks = append(checks, healthsvc.Check{
			Name:     "token-service",
			Critical: true,
			Fn:       httpCheck(strings.TrimRight(cfg.Edge.Verify.URL, "/") + "/readyz"),
		})
	}

	allow := cfg.Edge.AllowList
	if allow == nil {
		allow = edge.DefaultAllowList
	}

	routes := make([]edge.Route, 0, len(cfg.Edge.Routes))
	for _, r := range cfg.Edge.Routes {
		routes = append(routes, edge.Route{Prefix: r.Prefix, Upstream: r.Upstream})
	}
	proxy, err := edge.NewRouter(routes, cleanhttp.DefaultPooledTransport())
	if err != nil {
		return nil, fmt.Errorf("edge routes: %w", err)
	}
	if len(routes) == 0 {
		log.Warn("edge has no routes, every authorized request will get 404")
	}
	log.Info("edge configured",
		logger.String("verify_mode", cfg.Edge.Verify.Mode),
		logger.Any("allow_list", allow),
		logger.Any("routes", len(routes)),
	)

	handler := router.NewEdgeRouter(router.EdgeRouterDeps{
		Filter:      edge.NewFilter(edge.NewAllowList(allow), verifier),
		Proxy:       proxy,
		Health:      newHealth(ServiceEdge, cfg, checks),
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
	})
	return &Built{Addr: cfg.Edge.Addr, Handler: handler, Cleanup: noop}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ACCOUNTS (servicio de dominio de referencia)
// ═══════════════════════════════════════════════════════════════════════════════

// BuildAccounts arma el servicio de cuentas de una clase de tenant, sobre
// memoria o Postgres (con migraciones embebidas opcionales).
func BuildAccounts(ctx context.Context, cfg *config.Config, opts Options) (*Built, error) {
	log := logger.From(ctx).With(logger.Component(ServiceAccounts), logger.Op("BuildAccounts"))

	m, err := buildMetrics(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	class, err := identity.ParseTenantClass(cfg.Accounts.TenantClass)
	if err != nil {
		return nil, fmt.Errorf("accounts.tenant_class: %w", err)
	}

	var (
		repo    repository.AccountRepository
		checks  []healthsvc.Check
		cleanup = noop
	)
	switch cfg.Accounts.Store {
	case "postgres":
		pg, err := accounts.NewPostgresStore(ctx, accounts.PostgresConfig{
			DSN:             cfg.Accounts.Postgres.DSN,
			MaxConns:        cfg.Accounts.Postgres.MaxConns,
			MinConns:        cfg.Accounts.Postgres.MinConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("account store: %w", err)
		}
		if cfg.Accounts.Migrate {
			if err := pg.Migrate(ctx, migrations.AccountsFS, migrations.AccountsDir); err != nil {
				pg.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("account migrations applied")
		}
		if m != nil {
			if err := metrics.RegisterPool(opts.registerer(), pg.Pool()); err != nil {
				log.Warn("pool metrics not registered", logger.Err(err))
			}
		}
		repo = pg
		checks = append(checks, healthsvc.Check{Name: "postgres", Critical: true, Fn: pg.Ping})
		cleanup = func() error { pg.Close(); return nil }
	default:
		repo = accounts.NewMemoryStore()
	}

	svc := accounts.NewService(accounts.Deps{
		Repo:        repo,
		TenantClass: class,
		Policy: password.Policy{
			MinLength:     cfg.Accounts.Password.MinLength,
			RequireUpper:  cfg.Accounts.Password.RequireUpper,
			RequireLower:  cfg.Accounts.Password.RequireLower,
			RequireDigit:  cfg.Accounts.Password.RequireDigit,
			RequireSymbol: cfg.Accounts.Password.RequireSymbol,
		},
	})

	handler := router.NewAccountsRouter(router.AccountsRouterDeps{
		Accounts:    accountsctrl.NewAccountsController(svc),
		Health:      newHealth(ServiceAccounts, cfg, checks),
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
	})
	return &Built{Addr: cfg.Accounts.Addr, Handler: handler, Cleanup: cleanup}, nil
}

// ─── Helpers ───

func newHealth(service string, cfg *config.Config, checks []healthsvc.Check) *healthctrl.HealthController {
	return healthctrl.NewHealthController(healthsvc.NewHealthService(healthsvc.Deps{
		Service: service,
		Version: cfg.App.Version,
		Checks:  checks,
	}))
}

var checkClient = cleanhttp.DefaultPooledClient()

// httpCheck considera sano cualquier status < 500.
func httpCheck(url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := checkClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s: status %d", url, resp.StatusCode)
		}
		return nil
	}
}
