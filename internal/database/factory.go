package database

import (
	"fmt"
	"os"
	"path/filepath"

	"genstore/internal/config"
	"genstore/internal/database/migrations"
	"genstore/internal/store"
)

// NewStoreFromConfig creates a Store based on the database config type and
// brings its schema to the current version. Opening at a newer target
// version than previously recorded runs the pending upgrade steps before
// the store is handed out.
func NewStoreFromConfig(cfg config.DatabaseConfig, profileID string) (store.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, profileID+".db")
		blobPath := filepath.Join(cfg.DataDir, "legacy-settings.json")
		return openAndMigrate(dbPath, blobPath)
	case "memory":
		return openAndMigrate(":memory:", "")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

func openAndMigrate(path, blobPath string) (store.Store, error) {
	s, err := NewSQLiteStore(path, blobPath, store.RealClock{})
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(s.db); err != nil {
		s.Close()
		return nil, fmt.Errorf("upgrading schema: %w", err)
	}
	return s, nil
}
