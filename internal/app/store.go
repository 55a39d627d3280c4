package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/hodwatch/internal/config"
	"github.com/rickgao/hodwatch/internal/database"
	"github.com/rickgao/hodwatch/internal/store"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

// OpenStore connects the configured store and applies the schema when
// database.migrate is set.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var st store.Store
	switch cfg.Driver {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		st = store.NewPostgres(pool)

	case "sqlite":
		logger.Info("opening database", "path", cfg.SQLite.Path)
		db, err := store.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		st = db

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if cfg.Migrate {
		m, ok := st.(migrator)
		if !ok {
			st.Close()
			return nil, fmt.Errorf("driver %s does not support migrations", cfg.Driver)
		}
		if err := m.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema applied", "driver", cfg.Driver)
	}

	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return st, nil
}
