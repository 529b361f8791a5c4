package storage

import (
	"context"
	"fmt"

	"leetee/internal/config"
	"leetee/internal/database"
	"leetee/internal/logger"
)

// Backend is an opened store. DB is set only for the sql backend.
type Backend struct {
	Name string
	KV   KV
	DB   *database.DB
}

// Open connects the backend named by cfg.StorageBackend. The sql backend
// runs pending migrations before returning.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	log = logger.OrNop(log)

	switch cfg.StorageBackend {
	case "sql", "":
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("initialize database: %w", err)
		}
		applied, err := db.RunMigrations(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database ready", "type", cfg.DatabaseType, "migrations_applied", len(applied))
		return &Backend{Name: "sql", KV: NewSQL(db), DB: db}, nil

	case "redis":
		rdb, err := NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		log.Info("redis ready", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return &Backend{Name: "redis", KV: rdb}, nil

	case "memory":
		log.Warn("using in-memory storage, progress is lost on restart")
		return &Backend{Name: "memory", KV: NewMemory()}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Close releases the store and its database connection.
func (b *Backend) Close() error {
	err := b.KV.Close()
	if b.DB != nil {
		if dbErr := b.DB.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}
