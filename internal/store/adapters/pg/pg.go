// Package pg implementa store.Store sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentdock/authcore/internal/domain/repository"
	"github.com/talentdock/authcore/internal/store"
)

func init() {
	store.Register(driver{})
}

type driver struct{}

func (driver) Name() string { return "postgres" }

func (driver) Open(ctx context.Context, cfg store.Config) (store.Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	} else {
		poolCfg.MinConns = 2
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

type pgStore struct {
	pool *pgxpool.Pool
}

func (s *pgStore) Accounts() repository.AccountRepository {
	return &accountRepo{pool: s.pool}
}

func (s *pgStore) RefreshTokens() repository.RefreshTokenRepository {
	return &tokenRepo{pool: s.pool}
}

func (s *pgStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

// isUniqueViolation detecta el código 23505 de PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
