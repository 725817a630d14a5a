package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Gruvbox palette
var (
	gruvboxFgDark  = text.Colors{text.FgHiBlack}
	gruvboxFgLight = text.Colors{text.FgWhite}
	gruvboxRed     = text.Colors{text.FgRed}
	gruvboxGreen   = text.Colors{text.FgGreen}
	gruvboxYellow  = text.Colors{text.FgYellow}
	gruvboxBlue    = text.Colors{text.FgBlue}
	gruvboxAqua    = text.Colors{text.FgCyan}
	gruvboxBold    = text.Colors{text.Bold}
)

// Theme - exported theme colors for consistent UI
var Theme = struct {
	Success     text.Colors
	Info        text.Colors
	Warning     text.Colors
	Error       text.Colors
	Heading     text.Colors
	Subtle      text.Colors
	Accent      text.Colors
	Title       text.Colors
	Divider     text.Colors
	TableHeader text.Colors
	TableBorder text.Colors
	TableRow    text.Colors
	TableAltRow text.Colors
	Badge       text.Colors
}{
	Success:     gruvboxGreen,
	Info:        gruvboxBlue,
	Warning:     gruvboxYellow,
	Error:       gruvboxRed,
	Heading:     text.Colors{text.FgHiCyan, text.Bold},
	Subtle:      gruvboxFgDark,
	Accent:      gruvboxAqua,
	Title:       text.Colors{text.FgHiCyan, text.Bold},
	Divider:     gruvboxFgDark,
	TableHeader: text.Colors{text.FgHiBlue, text.Bold},
	TableBorder: gruvboxBlue,
	TableRow:    gruvboxFgLight,
	TableAltRow: text.Colors{text.FgWhite, text.Faint},
	Badge:       text.Colors{text.FgHiYellow, text.Bold},
}

var (
	outMu sync.Mutex
	out   io.Writer = os.Stdout
)

// SetOutput redirects every Print helper to w and returns the previous writer
func SetOutput(w io.Writer) io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	prev := out
	out = w
	return prev
}

// Output returns the writer the Print helpers write to
func Output() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return out
}

func writeLine(s string) {
	fmt.Fprintln(Output(), s)
}

// PrintHeading prints a formatted heading
func PrintHeading(title string) {
	writeLine(Theme.Heading.Sprint(title))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	writeLine(Theme.Success.Sprint("✓ ") + message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	writeLine(Theme.Info.Sprint("ℹ ") + message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	writeLine(Theme.Warning.Sprint("⚠ ") + message)
}

// PrintError prints an error message
func PrintError(message string) {
	writeLine(Theme.Error.Sprint("✗ ") + message)
}

// PrintKeyValue prints a key-value pair
func PrintKeyValue(key, value string) {
	writeLine(fmt.Sprintf("%s: %s", gruvboxBold.Sprint(key), value))
}

// PrintDivider prints a horizontal divider
func PrintDivider() {
	writeLine(Theme.Divider.Sprint("---------------------------------------------------"))
}

// Plain writes s without styling
func Plain(s string) {
	fmt.Fprint(Output(), s)
}

// SeverityColors maps a violation severity to its display colors
func SeverityColors(severity string) text.Colors {
	switch strings.ToLower(severity) {
	case "critical", "error", "high":
		return text.Colors{text.FgHiRed, text.Bold}
	case "major", "warning", "medium":
		return gruvboxYellow
	case "minor", "low":
		return gruvboxBlue
	case "info", "nit", "suggestion":
		return gruvboxAqua
	default:
		return gruvboxFgLight
	}
}

// StatusColors maps a violation or run status to its display colors
func StatusColors(status string) text.Colors {
	switch strings.ToLower(status) {
	case "approved", "completed", "succeeded":
		return gruvboxGreen
	case "rejected", "failed":
		return gruvboxRed
	case "skipped", "cancelled":
		return gruvboxFgDark
	default:
		return gruvboxYellow
	}
}

// CreateTable creates a table writer rendering to the current output
func CreateTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(Output())
	if title != "" {
		t.SetTitle(title)
	}

	style := table.StyleLight
	style.Color.Header = Theme.TableHeader
	style.Color.Border = Theme.TableBorder
	style.Color.Row = Theme.TableRow
	style.Color.RowAlternate = Theme.TableAltRow
	style.Title.Colors = Theme.Title
	style.Title.Align = text.AlignCenter
	style.Options.SeparateRows = false
	t.SetStyle(style)
	return t
}

// PrintTable prints a table with headers and rows
func PrintTable(title string, headers []string, rows [][]string) {
	t := CreateTable(title)

	header := make(table.Row, 0, len(headers))
	for _, h := range headers {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, 0, len(r))
		for _, cell := range r {
			row = append(row, cell)
		}
		t.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignCenter,
		})
	}
	t.SetColumnConfigs(configs)
	t.Render()

	if len(rows) == 0 {
		writeLine(Theme.Subtle.Sprint("No records found."))
	}
}

// RenderMarkdown renders markdown for the terminal. It falls back to the
// raw text when the renderer cannot be built.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md
	}
	return rendered
}

// HighlightCode colors code for a 256 color terminal. lang is a language
// name or alias; filename is used when lang is unknown.
func HighlightCode(code, lang, filename string) string {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil && filename != "" {
		lexer = lexers.Match(filename)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("gruvbox")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return code
	}
	return b.String()
}

// CodeBlock indents code by four spaces
func CodeBlock(code string) string {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + line
	}
	return strings.Join(lines, "\n")
}
