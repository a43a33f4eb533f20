package accounts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/bizgate/internal/domain/repository"
	"github.com/dropDatabas3/bizgate/internal/observability/logger"
)

// PostgresConfig configura el pool de la account store.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// PostgresStore es la AccountRepository sobre pgx.
type PostgresStore struct{ pool *pgxpool.Pool }

// NewPostgresStore abre el pool. Si el ping inicial falla solo se loguea:
// el servicio arranca y /readyz reporta la base caída.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("accounts: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.L().With(logger.Component("accounts.pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Any("max_conns", pcfg.MaxConns))
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool expone el pool (metrics).
func (s *PostgresStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente.
func (s *PostgresStore) Close() { s.pool.Close() }

// Migrate aplica los *_up.sql de dir en orden lexicográfico. Los scripts
// son idempotentes (IF NOT EXISTS).
func (s *PostgresStore) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
	}
	return nil
}

const accountColumns = `username, password_hash, token, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*repository.Account, error) {
	var (
		acc    repository.Account
		status string
	)
	err := row.Scan(&acc.Username, &acc.PasswordHash, &acc.Token, &status, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Status = repository.ParseAccountStatus(status)
	return &acc, nil
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*repository.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM account WHERE username = $1`, username))
}

func (s *PostgresStore) GetByToken(ctx context.Context, token string) (*repository.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM account WHERE token = $1`, token))
}

func (s *PostgresStore) SaveToken(ctx context.Context, username, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE account SET token = $2, updated_at = now() WHERE username = $1`, username, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, in repository.CreateAccountInput) (*repository.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx, `
		INSERT INTO account (username, password_hash, status)
		VALUES ($1, $2, $3)
		RETURNING `+accountColumns, in.Username, in.PasswordHash, string(in.Status)))
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return acc, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
