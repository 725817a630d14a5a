package storage

import (
	"context"
	"fmt"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/database"
)

// Open builds the backend selected by cfg. The returned close function
// releases any underlying resources and is never nil.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, func() error, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileBackend(cfg.Dir), func() error { return nil }, nil
	case "sqlite":
		db, err := database.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if _, err := database.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewSQLiteBackend(db), db.Close, nil
	case "memory":
		return NewMemoryBackend(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
