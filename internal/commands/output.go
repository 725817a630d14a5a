package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/utils"
)

const timeLayout = "2006-01-02 15:04"

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(timeLayout)
}

// findResult looks a stored result up by id, then by file
func findResult(ctx context.Context, store *review.Store, ref string) *review.ReviewResult {
	if r := store.LoadByID(ctx, ref); r != nil {
		return r
	}
	return store.LoadByFile(ctx, ref)
}

func violationRows(r *review.ReviewResult) [][]string {
	rows := make([][]string, 0, len(r.Violations))
	for i, v := range r.Violations {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.Itoa(v.Line),
			utils.SeverityColors(string(v.Severity)).Sprint(string(v.Severity)),
			utils.StatusColors(string(v.Status)).Sprint(string(v.Status)),
			utils.Truncate(v.Message, 70),
		})
	}
	return rows
}

// printResult shows a review result: summary, violation table and, when
// details is set, each suggestion with highlighting
func printResult(r *review.ReviewResult, details bool) {
	utils.PrintHeading("Review of " + r.File)
	utils.PrintKeyValue("ID", r.ID)
	utils.PrintKeyValue("Status", utils.StatusColors(string(r.Status)).Sprint(string(r.Status)))
	utils.PrintKeyValue("Reviewed", formatMillis(r.Timestamp))
	if r.LastReviewTimestamp != nil {
		utils.PrintKeyValue("Last decision", formatMillis(*r.LastReviewTimestamp))
	}
	if r.Summary != "" {
		utils.Plain(utils.RenderMarkdown(r.Summary, 100))
	}

	if len(r.Violations) == 0 {
		utils.PrintSuccess("No violations")
		return
	}
	utils.PrintTable(fmt.Sprintf("%d violations", len(r.Violations)),
		[]string{"#", "Line", "Severity", "Status", "Message"}, violationRows(r))

	if !details {
		return
	}
	for i, v := range r.Violations {
		utils.PrintDivider()
		utils.PrintKeyValue(fmt.Sprintf("#%d line %d", i, v.Line), v.Message)
		if v.ReviewNote != "" {
			utils.PrintKeyValue("Note", v.ReviewNote)
		}
		if v.OriginalCode != "" {
			utils.PrintInfo("Original")
			utils.Plain(utils.CodeBlock(utils.HighlightCode(v.OriginalCode, "", r.File)) + "\n")
		}
		if v.Suggestion != "" {
			utils.PrintInfo("Suggestion")
			utils.Plain(utils.CodeBlock(utils.HighlightCode(v.Suggestion, "", r.File)) + "\n")
		}
	}
}

// resultMarkdown renders a result as markdown for the clipboard
func resultMarkdown(r *review.ReviewResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Review of %s\n\n%s\n", r.File, r.Summary)
	for i, v := range r.Violations {
		fmt.Fprintf(&b, "\n%d. **%s** line %d (%s): %s\n", i+1, v.Severity, v.Line, v.Status, v.Message)
		if v.Suggestion != "" {
			fmt.Fprintf(&b, "\n```\n%s\n```\n", v.Suggestion)
		}
	}
	return b.String()
}

func highlightPath(path string) string {
	return color.YellowString("%s", path)
}
