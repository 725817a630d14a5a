// Package database manages the SQLite connection behind the sqlite storage backend
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/migrations"
)

// Open opens the database described by cfg and verifies the connection
func Open(ctx context.Context, cfg config.StorageConfig) (*sql.DB, error) {
	if !isMemory(cfg.DBPath) {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	loggy.Debug("opening database", "path", cfg.DBPath)
	db, err := sql.Open("sqlite3", buildSQLiteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func buildSQLiteDSN(cfg config.StorageConfig) string {
	if isMemory(cfg.DBPath) {
		return cfg.DBPath
	}
	params := url.Values{}
	params.Add("_busy_timeout", strconv.Itoa(cfg.BusyTimeout))
	if cfg.JournalMode != "" {
		params.Add("_journal_mode", cfg.JournalMode)
	}
	params.Add("_synchronous", "NORMAL")
	return cfg.DBPath + "?" + params.Encode()
}

// RunMigrations applies pending migrations and returns how many were applied
func RunMigrations(db *sql.DB) (int, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, err
	}

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	after, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	loggy.Info("database migration complete", "version", after, "dirty", dirty)
	return int(after) - int(before), nil
}

// RevertMigrations rolls back the given number of migrations
func RevertMigrations(db *sql.DB, steps int) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	return nil
}

// newMigrator does not close m: closing it would close the shared *sql.DB
func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}
	src, err := migrations.Source()
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}
