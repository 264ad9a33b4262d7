package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EternisAI/fleet-monitor/internal/db"
	"github.com/EternisAI/fleet-monitor/internal/machines"
)

type pingableStore interface {
	machines.Store
	Ping(ctx context.Context) error
}

// openStore builds the configured backend. For postgres the pool is created
// and migrations are applied before the store is returned.
func openStore(ctx context.Context, cfg Config) (pingableStore, error) {
	switch cfg.Store.Driver {
	case machines.DriverPostgres, "":
		if cfg.DB.Url == "" {
			return nil, fmt.Errorf("db.url is required for the %s store", machines.DriverPostgres)
		}
		if err := db.RunMigrations(ctx, cfg.DB.Url, cfg.DB.Schema); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := db.InitDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		return &pooledStore{PostgresStore: machines.NewPostgresStore(pool), closeFn: pool.Close}, nil

	case machines.DriverBadger:
		store, err := machines.NewBadgerStore(cfg.Badger)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		slog.Info("Using Badger store", "path", cfg.Badger.Path, "in_memory", cfg.Badger.InMemory)
		return store, nil

	case machines.DriverMemory:
		slog.Warn("Using in-memory store, machine state is lost on restart")
		return machines.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// pooledStore owns the pool behind a PostgresStore.
type pooledStore struct {
	*machines.PostgresStore
	closeFn func()
}

func (s *pooledStore) Close() error {
	s.closeFn()
	return nil
}
