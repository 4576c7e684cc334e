package main

import (
	"context"
	"database/sql"
	"fmt"

	"tombstone/internal/config"
	"tombstone/internal/core/tx"
	"tombstone/internal/domain/inventory"
	"tombstone/internal/infrastructure/http/v1/handlers"
	"tombstone/internal/infrastructure/storage/postgres"
	"tombstone/internal/infrastructure/storage/sqlite"
	"tombstone/internal/softdelete"
)

// backend bundles the storage collaborators of one driver.
type backend struct {
	store softdelete.Store
	txm   tx.Manager
	ping  handlers.Pinger
	stats func() any
	exec  func(ctx context.Context, ddl string) error
	close func()

	// pool is set for postgres only
	pool *postgres.Pool
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
		poolCfg.MaxConns = cfg.DB.MaxConns
		poolCfg.MinConns = cfg.DB.MinConns
		poolCfg.MaxConnLifetime = cfg.DB.MaxConnLifetime
		poolCfg.MaxConnIdleTime = cfg.DB.MaxConnIdleTime

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		txm := postgres.NewTxManager(pool)
		return &backend{
			store: postgres.NewStore(txm),
			txm:   txm,
			ping:  pool,
			stats: func() any { return pool.Stats() },
			exec: func(ctx context.Context, ddl string) error {
				_, err := pool.Exec(ctx, ddl)
				return err
			},
			close: pool.Close,
			pool:  pool,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DB.URL)
		if err != nil {
			return nil, err
		}
		txm := sqlite.NewTxManager(db)
		return &backend{
			store: sqlite.NewStore(txm),
			txm:   txm,
			ping:  handlers.PingFunc(db.PingContext),
			stats: func() any { return sqlStats(db.Stats()) },
			exec: func(ctx context.Context, ddl string) error {
				_, err := db.ExecContext(ctx, ddl)
				return err
			},
			close: func() { db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.DB.Driver)
	}
}

// migrate creates the inventory tables.
func (b *backend) migrate(ctx context.Context, driver string) error {
	ddl, err := inventory.Schema(driver)
	if err != nil {
		return err
	}
	if err := b.exec(ctx, ddl); err != nil {
		return fmt.Errorf("create inventory schema: %w", err)
	}
	return nil
}

func sqlStats(s sql.DBStats) map[string]any {
	return map[string]any{
		"openConns": s.OpenConnections,
		"inUse":     s.InUse,
		"idle":      s.Idle,
		"waitCount": s.WaitCount,
		"maxOpen":   s.MaxOpenConnections,
	}
}
