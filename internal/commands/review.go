package commands

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/critiq/internal/app"
	"github.com/tildaslashalef/critiq/internal/extractor"
	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/utils"
)

var detailsFlag = &cli.BoolFlag{
	Name:    "details",
	Aliases: []string{"d"},
	Usage:   "Show original code and suggestions for every violation",
}

// ReviewCommand returns the CLI command that reviews files
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Review one or more files with the configured LLM",
		ArgsUsage: "<file> [file...]",
		Flags: []cli.Flag{
			detailsFlag,
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "How many files to review at once",
				Value:   2,
			},
		},
		Action: reviewAction,
	}
}

// ReReviewCommand returns the CLI command that reviews a file again,
// feeding earlier approve/reject decisions back to the model
func ReReviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "rereview",
		Usage:     "Review a file again, taking earlier decisions into account",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{detailsFlag},
		Action:    reReviewAction,
	}
}

func reviewAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() == 0 {
		return cli.Exit("review needs at least one file", 1)
	}
	if err := application.RequireLLM(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	failed := 0
	for _, outcome := range application.Review.ReviewFiles(c.Context, c.Args().Slice(), c.Int("concurrency")) {
		if outcome.Err != nil {
			failed++
			reportReviewError(outcome.Path, outcome.Err)
		}
		if outcome.Result != nil {
			printResult(outcome.Result, c.Bool("details"))
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d reviews failed", failed, c.NArg()), 1)
	}
	return nil
}

func reReviewAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}
	if c.NArg() != 1 {
		return cli.Exit("rereview needs exactly one file", 1)
	}
	if err := application.RequireLLM(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	path := c.Args().First()
	feedback := application.Review.Store().GetViolationsForReReview(c.Context, path)
	if feedback.Empty() {
		utils.PrintInfo("No earlier decisions found for " + highlightPath(path))
	} else {
		utils.PrintInfo(fmt.Sprintf("Using %d approved and %d rejected findings", len(feedback.Approved), len(feedback.Rejected)))
	}

	result, err := application.Review.ReReviewFile(c.Context, path)
	if result != nil {
		printResult(result, c.Bool("details"))
	}
	if err != nil {
		reportReviewError(path, err)
		return cli.Exit("re-review failed", 1)
	}
	return nil
}

func reportReviewError(path string, err error) {
	switch {
	case errors.Is(err, extractor.ErrExtractionFailed):
		utils.PrintError(review.ParseFailureSummary + ": " + path)
	case errors.Is(err, review.ErrFileTooLarge):
		utils.PrintWarning(fmt.Sprintf("Skipped %s: %s", path, err))
	default:
		utils.PrintError(fmt.Sprintf("Review of %s failed: %s", path, err))
	}
}
