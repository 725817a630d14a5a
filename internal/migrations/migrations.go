// Package migrations embeds the SQL schema for the sqlite storage backend
package migrations

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var migrationsFS embed.FS

// Source returns a migrate source driver over the embedded sql directory
func Source() (source.Driver, error) {
	sub, err := fs.Sub(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return src, nil
}
