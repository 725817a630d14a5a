package commands

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
	"github.com/tildaslashalef/critiq/internal/utils"
	"github.com/tildaslashalef/critiq/internal/workflow"
)

// WorkflowCommand returns the CLI command for running agent workflows
func WorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:    "workflow",
		Aliases: []string{"wf"},
		Usage:   "Run review, fix and test workflows on a file",
		Subcommands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a workflow against a file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "workflow",
						Aliases: []string{"w"},
						Usage:   "Name of the workflow to run",
						Value:   workflow.DefaultWorkflowName,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "YAML file with workflow definitions (overrides CRITIQ_WORKFLOW_FILE)",
					},
				},
				Action: workflowRunAction,
			},
			{
				Name:   "list",
				Usage:  "List the available workflows",
				Action: workflowListAction,
			},
			{
				Name:      "runs",
				Usage:     "List recent runs, or show one",
				ArgsUsage: "[run-id]",
				Action:    workflowRunsAction,
			},
		},
	}
}

func workflowRunAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("workflow run needs exactly one file", 1)
	}
	if err := application.RequireLLM(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	catalog := application.Catalog
	if path := c.String("file"); path != "" {
		if catalog, err = workflow.LoadCatalog(path); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}
	wf, err := catalog.Get(c.String("workflow"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	utils.PrintInfo(fmt.Sprintf("Running %s on %s", wf.Name, highlightPath(c.Args().First())))
	run, err := application.Workflows.Run(c.Context, wf, c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	printRun(run)

	if run.Status != workflow.RunSucceeded {
		return cli.Exit(fmt.Sprintf("workflow %s", run.Status), 1)
	}
	return nil
}

func workflowListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	rows := [][]string{}
	for _, wf := range application.Catalog.List() {
		names := make([]string, 0, len(wf.Steps))
		for _, s := range wf.Steps {
			names = append(names, s.Name)
		}
		rows = append(rows, []string{wf.Name, strings.Join(names, " > "), wf.Description})
	}
	utils.PrintTable("Workflows", []string{"Name", "Steps", "Description"}, rows)
	return nil
}

func workflowRunsAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if c.NArg() > 0 {
		run := application.Runs.LoadByID(c.Context, c.Args().First())
		if run == nil {
			return cli.Exit(fmt.Sprintf("no workflow run with id %s", c.Args().First()), 1)
		}
		printRun(run)
		return nil
	}

	runs := application.Runs.LoadAll(c.Context)
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Name,
			r.Workflow,
			r.File,
			utils.StatusColors(string(r.Status)).Sprint(string(r.Status)),
			formatMillis(r.StartedAt),
		})
	}
	utils.PrintTable("Workflow runs", []string{"ID", "Name", "Workflow", "File", "Status", "Started"}, rows)
	return nil
}

func printRun(run *workflow.Run) {
	utils.PrintHeading(fmt.Sprintf("Run %s (%s)", run.Name, run.Workflow))
	utils.PrintKeyValue("ID", run.ID)
	utils.PrintKeyValue("File", run.File)
	utils.PrintKeyValue("Status", utils.StatusColors(string(run.Status)).Sprint(string(run.Status)))
	utils.PrintKeyValue("Duration", run.Duration().String())
	if run.ReviewID != "" {
		utils.PrintKeyValue("Review", run.ReviewID)
	}
	if run.FixedPath != "" {
		utils.PrintKeyValue("Fixed file", highlightPath(run.FixedPath))
	}

	rows := make([][]string, 0, len(run.Steps))
	for _, s := range run.Steps {
		detail := s.Output
		if s.Error != "" {
			detail = s.Error
		}
		rows = append(rows, []string{
			s.Name,
			string(s.Kind),
			utils.StatusColors(string(s.Status)).Sprint(string(s.Status)),
			s.Duration().String(),
			utils.Truncate(detail, 70),
		})
	}
	utils.PrintTable("Steps", []string{"Step", "Kind", "Status", "Duration", "Detail"}, rows)
}
