package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/bizgate/internal/accounts"
	"github.com/dropDatabas3/bizgate/internal/config"
	"github.com/dropDatabas3/bizgate/internal/http/server"
	jwtx "github.com/dropDatabas3/bizgate/internal/jwt"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
	"github.com/dropDatabas3/bizgate/internal/security/password"
	migrations "github.com/dropDatabas3/bizgate/migrations/postgres"
)

var version = "dev"

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath = envOr("BIZGATE_CONFIG", "")
		envFile = envOr("BIZGATE_ENV_FILE", ".env")
	)

	root := &cobra.Command{
		Use:           "bizgate",
		Short:         "Emisión de tokens federada y autorización en el borde",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; las variables del sistema siguen valiendo
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Path al config YAML (env BIZGATE_CONFIG)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "Archivo .env a cargar si existe")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		if cfg.App.Version == "" {
			cfg.App.Version = version
		}
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newMigrateCmd(loadConfig),
		newHashPasswordCmd(),
		newVerifyTokenCmd(loadConfig),
		newIssueCmd(),
	)
	return root
}

type configLoader func() (*config.Config, error)

// ═══════════════════════════════════════════════════════════════════════════════
// serve
// ═══════════════════════════════════════════════════════════════════════════════

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "serve token|edge|accounts [...]",
		Short:     "Levanta uno o más servicios en este proceso",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{server.ServiceToken, server.ServiceEdge, server.ServiceAccounts},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger.Init(logger.Config{
				Env:     cfg.App.Env,
				Level:   cfg.Log.Level,
				Service: strings.Join(args, "+"),
				Version: cfg.App.Version,
			})
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx = logger.ToContext(ctx, logger.L())

			seen := map[string]bool{}
			built := make([]*server.Built, 0, len(args))
			defer func() {
				for _, b := range built {
					_ = b.Cleanup()
				}
			}()
			for _, name := range args {
				if seen[name] {
					return fmt.Errorf("service %q given twice", name)
				}
				seen[name] = true

				opts := server.Options{}
				if len(args) > 1 {
					// un registry por servicio para que cada /metrics sea propio
					opts.Registerer = prometheus.NewRegistry()
				}
				b, err := server.Build(ctx, name, cfg, opts)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				built = append(built, b)
			}

			g, gctx := errgroup.WithContext(ctx)
			for i, b := range built {
				b := b
				name := args[i]
				g.Go(func() error {
					lctx := logger.ToContext(gctx, logger.L().With(logger.Component(name)))
					if err := server.Serve(lctx, server.NewHTTPServer(b.Addr, b.Handler), nil); err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// migrate
// ═══════════════════════════════════════════════════════════════════════════════

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de la account store (Postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Accounts.Store != "postgres" {
				return fmt.Errorf("accounts.store is %q, nothing to migrate", cfg.Accounts.Store)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			pg, err := accounts.NewPostgresStore(ctx, accounts.PostgresConfig{
				DSN:      cfg.Accounts.Postgres.DSN,
				MaxConns: 1,
			})
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.Migrate(ctx, migrations.AccountsFS, migrations.AccountsDir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// hash-password
// ═══════════════════════════════════════════════════════════════════════════════

func newHashPasswordCmd() *cobra.Command {
	var (
		useBcrypt bool
		cost      int
	)
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Genera un hash argon2id (o bcrypt) para sembrar cuentas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			var (
				h   string
				err error
			)
			if useBcrypt {
				h, err = password.HashBcrypt(plain, cost)
			} else {
				h, err = password.Hash(password.Default, plain)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useBcrypt, "bcrypt", false, "Usar bcrypt en lugar de argon2id")
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "Costo bcrypt")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// verify-token
// ═══════════════════════════════════════════════════════════════════════════════

func newVerifyTokenCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-token <token>",
		Short: "Verifica un token con el secreto configurado e imprime sus claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			signer, err := jwtx.NewSigner(jwtx.SignerConfig{
				Secret: cfg.JWT.Secret,
				Issuer: cfg.JWT.Issuer,
				Leeway: cfg.Leeway(),
			})
			if err != nil {
				return err
			}
			claims, err := signer.Verify(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(claims)
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// issue (cliente de POST /auth/token)
// ═══════════════════════════════════════════════════════════════════════════════

type client struct {
	BaseURL string
	HTTP    *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func newIssueCmd() *cobra.Command {
	var (
		baseURL     = envOr("BIZGATE_TOKEN_URL", "http://localhost:8081")
		tenantClass string
		username    string
		pw          string
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Pide un token al servicio de emisión",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantClass == "" || username == "" {
				return fmt.Errorf("--tenant-class y --username son requeridos")
			}
			if pw == "" {
				pw = os.Getenv("BIZGATE_PASSWORD")
			}
			hc := cleanhttp.DefaultClient()
			hc.Timeout = timeout
			cl := &client{BaseURL: baseURL, HTTP: hc}

			b, _ := json.Marshal(map[string]string{
				"tenantClass": tenantClass,
				"username":    username,
				"password":    pw,
			})
			status, body, err := cl.do(cmd.Context(), http.MethodPost, "/auth/token", b)
			if err != nil {
				return err
			}
			var v any
			if json.Unmarshal(body, &v) == nil {
				p, _ := json.MarshalIndent(v, "", "  ")
				body = p
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			if status/100 != 2 {
				return fmt.Errorf("issue failed: status=%d", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "token-url", baseURL, "URL del servicio de tokens (env BIZGATE_TOKEN_URL)")
	cmd.Flags().StringVar(&tenantClass, "tenant-class", "", "ADMIN|USER")
	cmd.Flags().StringVar(&username, "username", "", "Username sin namespace")
	cmd.Flags().StringVar(&pw, "password", "", "Password (env BIZGATE_PASSWORD)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout del request")
	return cmd
}
