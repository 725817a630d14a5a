package commands

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// ResultsCommand returns the CLI command for managing stored review results
func ResultsCommand() *cli.Command {
	return &cli.Command{
		Name:  "results",
		Usage: "Inspect and manage stored review results",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List stored review results",
				Action: resultsListAction,
			},
			{
				Name:      "show",
				Usage:     "Show one review result",
				ArgsUsage: "<review-id|file>",
				Flags: []cli.Flag{
					detailsFlag,
					&cli.BoolFlag{
						Name:  "copy",
						Usage: "Copy the result to the clipboard as markdown",
					},
				},
				Action: resultsShowAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete one review result",
				ArgsUsage: "<review-id>",
				Action:    resultsDeleteAction,
			},
			{
				Name:   "clear",
				Usage:  "Delete every stored review result",
				Action: resultsClearAction,
			},
		},
	}
}

func resultsListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	results := application.Review.Store().LoadAll(c.Context)
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.ID,
			r.File,
			utils.StatusColors(string(r.Status)).Sprint(string(r.Status)),
			strconv.Itoa(len(r.Violations)),
			fmt.Sprintf("%d/%d/%d", r.Count(review.StatusPending), r.Count(review.StatusApproved), r.Count(review.StatusRejected)),
			formatMillis(r.Timestamp),
		})
	}
	utils.PrintTable("Review results",
		[]string{"ID", "File", "Status", "Violations", "Pending/Approved/Rejected", "Reviewed"}, rows)
	return nil
}

func resultsShowAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("results show needs a review id or file", 1)
	}

	r := findResult(c.Context, application.Review.Store(), c.Args().First())
	if r == nil {
		return cli.Exit(fmt.Sprintf("no review found for %s", c.Args().First()), 1)
	}
	printResult(r, c.Bool("details"))

	if c.Bool("copy") {
		if err := utils.CopyToClipboard(resultMarkdown(r)); err != nil {
			utils.PrintWarning(fmt.Sprintf("Could not copy to clipboard: %s", err))
		} else {
			utils.PrintSuccess("Copied to clipboard")
		}
	}
	return nil
}

func resultsDeleteAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("results delete needs a review id", 1)
	}

	id := c.Args().First()
	if !application.Review.Store().Delete(c.Context, id) {
		return cli.Exit(fmt.Sprintf("no review with id %s was deleted", id), 1)
	}
	utils.PrintSuccess("Deleted " + id)
	return nil
}

func resultsClearAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if !application.Review.Store().ClearAll(c.Context) {
		utils.PrintWarning("Review results could not be cleared")
		return cli.Exit("clear failed", 1)
	}
	utils.PrintSuccess("All review results cleared")
	return nil
}
