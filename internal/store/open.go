package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"workflow-portal-go/internal/config"
)

// OpenMedium connects the snapshot medium selected by cfg.Driver.
func OpenMedium(ctx context.Context, cfg config.SnapshotConfig) (Medium, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryMedium(), nil
	case "redis":
		m := NewRedisMedium(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := m.Ping(ctx); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return m, nil
	case "postgres":
		m, err := NewPostgresMedium(cfg.PostgreURL)
		if err != nil {
			return nil, err
		}
		if err := m.RunMigrations(ctx); err != nil {
			_ = m.Close()
			return nil, err
		}
		return m, nil
	case "sqlite":
		return NewSQLiteMedium(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown snapshot driver %q", cfg.Driver)
	}
}
