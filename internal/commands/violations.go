package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
	"github.com/tildaslashalef/critiq/internal/commands/browse"
	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// ViolationsCommand returns the CLI command for listing and deciding on violations
func ViolationsCommand() *cli.Command {
	noteFlag := &cli.StringFlag{
		Name:    "note",
		Aliases: []string{"n"},
		Usage:   "Reason recorded with the decision",
	}
	return &cli.Command{
		Name:    "violations",
		Aliases: []string{"v"},
		Usage:   "List violations and approve or reject them",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the violations of a review",
				ArgsUsage: "<review-id|file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show violations with this status (pending, approved, rejected)",
					},
				},
				Action: violationsListAction,
			},
			{
				Name:      "browse",
				Usage:     "Step through the violations of a review and decide on them",
				ArgsUsage: "<review-id|file>",
				Action:    violationsBrowseAction,
			},
			{
				Name:      "approve",
				Usage:     "Approve a violation",
				ArgsUsage: "<review-id> <index>",
				Flags:     []cli.Flag{noteFlag},
				Action:    decideAction(review.StatusApproved),
			},
			{
				Name:      "reject",
				Usage:     "Reject a violation",
				ArgsUsage: "<review-id> <index>",
				Flags:     []cli.Flag{noteFlag},
				Action:    decideAction(review.StatusRejected),
			},
		},
	}
}

func violationsListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("violations list needs a review id or file", 1)
	}

	r := findResult(c.Context, application.Review.Store(), c.Args().First())
	if r == nil {
		return cli.Exit(fmt.Sprintf("no review found for %s", c.Args().First()), 1)
	}

	title := "Violations in " + r.File
	rows := violationRows(r)
	if s := c.String("status"); s != "" {
		status, err := review.ParseViolationStatus(s)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		// indexes stay those of the full list so they can be passed to approve/reject
		kept := [][]string{}
		for i, row := range rows {
			if r.Violations[i].Status == status {
				kept = append(kept, row)
			}
		}
		title = fmt.Sprintf("%s violations in %s", status, r.File)
		rows = kept
	}

	utils.PrintTable(title, []string{"#", "Line", "Severity", "Status", "Message"}, rows)
	return nil
}

func violationsBrowseAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("violations browse needs a review id or file", 1)
	}

	r := findResult(c.Context, application.Review.Store(), c.Args().First())
	if r == nil {
		return cli.Exit(fmt.Sprintf("no review found for %s", c.Args().First()), 1)
	}
	if len(r.Violations) == 0 {
		utils.PrintInfo("No violations to decide on in " + r.File)
		return nil
	}
	if err := browse.Run(c.Context, application.Review.Store(), r); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

func decideAction(status review.ViolationStatus) cli.ActionFunc {
	return func(c *cli.Context) error {
		application, err := app.FromContext(c)
		if err != nil {
			return err
		}
		if c.NArg() != 2 {
			return cli.Exit(fmt.Sprintf("%s needs a review id and a violation index", c.Command.Name), 1)
		}
		id := c.Args().Get(0)
		index, err := strconv.Atoi(c.Args().Get(1))
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid violation index %q", c.Args().Get(1)), 1)
		}

		err = application.Review.Store().UpdateViolationStatus(c.Context, id, index, status, c.String("note"))
		switch {
		case err == nil:
			utils.PrintSuccess(fmt.Sprintf("Violation %d of %s %s", index, id, status))
			return nil
		case errors.Is(err, review.ErrReviewNotFound):
			return cli.Exit(fmt.Sprintf("no review with id %s", id), 1)
		case errors.Is(err, review.ErrIndexOutOfRange):
			return cli.Exit(fmt.Sprintf("review %s has no violation %d", id, index), 1)
		case errors.Is(err, review.ErrInvalidStatus):
			return cli.Exit(err.Error(), 1)
		default:
			utils.PrintWarning("The decision could not be saved")
			return cli.Exit(err.Error(), 1)
		}
	}
}
