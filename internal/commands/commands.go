package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
)

// BuildInfo is populated at build time
type BuildInfo struct {
	Version   string
	BuildTime string
	Commit    string
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "project",
		Aliases: []string{"p"},
		Usage:   "Project root; review results are stored in <project>/.critiq (default: current directory)",
	},
	&cli.StringFlag{
		Name:  "config-dir",
		Usage: "Directory holding the .env configuration (default: ~/.critiq)",
	},
	&cli.StringFlag{
		Name:  "provider",
		Usage: "LLM provider to use: ollama, claude or gemini",
	},
	&cli.StringFlag{
		Name:  "storage",
		Usage: "Storage backend: file or sqlite",
	},
	&cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	},
}

// All returns every top level command
func All() []*cli.Command {
	return []*cli.Command{
		InitCommand(),
		ReviewCommand(),
		ReReviewCommand(),
		ViolationsCommand(),
		ResultsCommand(),
		ChatCommand(),
		WorkflowCommand(),
		MigrateCommand(),
	}
}

// NewApp builds the critiq command line application. An *app.App already
// stored under Metadata["app"] is used as is; otherwise one is created in
// Before and shut down in After.
func NewApp(info BuildInfo) *cli.App {
	return &cli.App{
		Name:  "critiq",
		Usage: "LLM-powered code review, chat and fix workflows",
		Description: "critiq sends source files to a local or hosted LLM, stores the review\n" +
			"results per project and lets you approve or reject each finding before\n" +
			"reviewing again.",
		Version: fmt.Sprintf("%s (%s)", info.Version, info.Commit),
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, info.BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Flags:    globalFlags,
		Commands: All(),
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
				text.DisableColors()
			}
			if _, ok := c.App.Metadata["app"].(*app.App); ok {
				return nil
			}
			// init must work before a configuration exists
			if c.Args().First() == "init" {
				return nil
			}

			application, err := app.New(c.Context, app.Options{
				ConfigDir:  c.String("config-dir"),
				ProjectDir: c.String("project"),
				Provider:   c.String("provider"),
				Storage:    c.String("storage"),
			})
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			if c.App.Metadata == nil {
				c.App.Metadata = map[string]interface{}{}
			}
			c.App.Metadata["app"] = application
			return nil
		},
		After: func(c *cli.Context) error {
			if application, ok := c.App.Metadata["app"].(*app.App); ok {
				return application.Shutdown()
			}
			return nil
		},
	}
}
