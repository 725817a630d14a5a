package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/database"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// InitCommand returns the CLI command for initializing critiq
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize or update the critiq environment",
		Description: "Writes a sample configuration to ~/.critiq/.env and, for the sqlite " +
			"storage backend, creates the database and applies migrations.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Replace an existing .env, keeping a dated backup",
			},
		},
		Action: initAction,
	}
}

func initAction(c *cli.Context) error {
	utils.PrintHeading("Initializing critiq")

	configDir := c.String("config-dir")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			utils.PrintError(fmt.Sprintf("Failed to get user home directory: %s", err))
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".critiq")
	}
	utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

	configFilePath, err := config.SetupConfigDirectory(configDir, c.Bool("force"))
	if err != nil {
		utils.PrintWarning(fmt.Sprintf("Failed to set up configuration files: %s", err))
		configFilePath = filepath.Join(configDir, ".env")
	}

	cfg, err := config.LoadFromEnv(configDir, configFilePath, c.String("project"))
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to load configuration: %s", err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if s := c.String("storage"); s != "" {
		cfg.Storage.Backend = s
	}

	if cfg.Storage.Backend == "sqlite" {
		utils.PrintInfo("Applying database migrations...")
		db, err := database.Open(c.Context, cfg.Storage)
		if err != nil {
			utils.PrintError(fmt.Sprintf("Failed to open database: %s", err))
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		applied, err := database.RunMigrations(db)
		if err != nil {
			utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		if applied > 0 {
			utils.PrintSuccess(fmt.Sprintf("Applied %d new migration(s)", applied))
		} else {
			utils.PrintInfo("Database schema is already up-to-date")
		}
		utils.PrintInfo("Database location: " + color.YellowString("%s", cfg.Storage.DBPath))
	} else {
		utils.PrintInfo("Storage directory: " + color.YellowString("%s", cfg.Storage.Dir))
	}

	utils.PrintSuccess("critiq initialized successfully")
	utils.PrintInfo("Configuration file: " + color.YellowString("%s", configFilePath))
	utils.PrintInfo("Log output: " + color.YellowString("%s", cfg.Logging.Output))
	utils.PrintInfo("You can now use " + color.CyanString("critiq review <file>") + " to review your code.")
	return nil
}
