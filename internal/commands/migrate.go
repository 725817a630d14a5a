package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
	"github.com/tildaslashalef/critiq/internal/database"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// MigrateCommand returns the CLI command for the sqlite storage migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Manage the sqlite storage schema",
		Hidden: true,
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(m migrator) error {
						utils.PrintInfo("Applying embedded migrations")
						applied, err := m.up()
						if err != nil {
							utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
							return fmt.Errorf("failed to apply migrations: %w", err)
						}
						if applied > 0 {
							utils.PrintSuccess(fmt.Sprintf("Applied %d migration(s) successfully!", applied))
						} else {
							utils.PrintSuccess("Database schema is already up-to-date")
						}
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "Revert the last migration",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to revert (default: 1)",
						Value: 1,
					},
				},
				Action: func(c *cli.Context) error {
					return withDatabase(c, func(m migrator) error {
						steps := c.Int("steps")
						utils.PrintWarning(fmt.Sprintf("Reverting %d embedded migration(s)", steps))
						if err := m.down(steps); err != nil {
							utils.PrintError(fmt.Sprintf("Failed to revert migrations: %s", err))
							return fmt.Errorf("failed to revert migrations: %w", err)
						}
						utils.PrintSuccess("Migration(s) reverted successfully!")
						return nil
					})
				},
			},
		},
	}
}

type migrator struct {
	up   func() (int, error)
	down func(steps int) error
}

// withDatabase opens the configured sqlite database for the duration of fn
func withDatabase(c *cli.Context, fn func(migrator) error) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if application.Config.Storage.Backend != "sqlite" {
		return cli.Exit("migrations only apply to the sqlite storage backend", 1)
	}

	db, err := database.Open(c.Context, application.Config.Storage)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return fn(migrator{
		up:   func() (int, error) { return database.RunMigrations(db) },
		down: func(steps int) error { return database.RevertMigrations(db, steps) },
	})
}
