package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/tildaslashalef/critiq/internal/review"
	"github.com/tildaslashalef/critiq/internal/utils"
)

// at most this many list rows are shown around the cursor
const maxListRows = 8

// View renders the browser
func (m Model) View() string {
	if !m.ready {
		return "Initializing...\n"
	}

	sections := []string{m.renderHeader(), m.renderList(), m.styles.Detail.Render(m.viewport.View())}
	if m.pending != "" {
		sections = append(sections, m.styles.Prompt.Render(fmt.Sprintf("%s, note: ", m.pending))+m.note.View())
	}
	if line := m.renderStatus(); line != "" {
		sections = append(sections, line)
	}
	if m.showHelp {
		sections = append(sections, m.help.View(Keys))
	} else {
		sections = append(sections, m.help.ShortHelpView(Keys.ShortHelp()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	r := m.result
	title := m.styles.Title.Render("Review of " + r.File)
	counts := m.styles.Subtle.Render(fmt.Sprintf("%d pending, %d approved, %d rejected",
		r.Count(review.StatusPending), r.Count(review.StatusApproved), r.Count(review.StatusRejected)))
	if r.Summary == "" {
		return lipgloss.JoinVertical(lipgloss.Left, title, counts)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, utils.Truncate(r.Summary, max(m.width-2, 20)), counts)
}

func (m Model) listHeight() int {
	return min(len(m.result.Violations), maxListRows)
}

func (m Model) renderList() string {
	if len(m.result.Violations) == 0 {
		return m.styles.Subtle.Render("No violations.")
	}

	start := 0
	if m.cursor >= maxListRows {
		start = m.cursor - maxListRows + 1
	}
	end := min(start+maxListRows, len(m.result.Violations))

	var b strings.Builder
	for i := start; i < end; i++ {
		v := m.result.Violations[i]
		row := fmt.Sprintf("#%-2d line %-4d %s %s %s", i, v.Line,
			m.styles.severity(v.Severity).Render(fmt.Sprintf("%-6s", v.Severity)),
			m.styles.status(v.Status).Render(fmt.Sprintf("%-8s", v.Status)),
			utils.Truncate(v.Message, max(m.width-40, 20)))
		if i == m.cursor {
			b.WriteString(m.styles.Selected.Render("> " + row))
		} else {
			b.WriteString(m.styles.Item.Render("  " + row))
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// refreshDetail renders the selected violation into the viewport
func (m *Model) refreshDetail() {
	if len(m.result.Violations) == 0 {
		m.viewport.SetContent("")
		return
	}
	v := m.result.Violations[m.cursor]
	width := max(m.width-6, 20)

	var b strings.Builder
	b.WriteString(m.styles.Label.Render(fmt.Sprintf("Line %d", v.Line)))
	b.WriteString("  ")
	b.WriteString(m.styles.severity(v.Severity).Render(string(v.Severity)))
	b.WriteString("  ")
	b.WriteString(m.styles.status(v.Status).Render(string(v.Status)))
	b.WriteString("\n\n")
	b.WriteString(wordwrap.String(v.Message, width))
	b.WriteString("\n")
	if v.OriginalCode != "" {
		b.WriteString("\n" + m.styles.Label.Render("Original") + "\n")
		b.WriteString(utils.HighlightCode(v.OriginalCode, "", m.result.File) + "\n")
	}
	if v.Suggestion != "" {
		b.WriteString("\n" + m.styles.Label.Render("Suggestion") + "\n")
		b.WriteString(utils.HighlightCode(v.Suggestion, "", m.result.File) + "\n")
	}
	if v.ReviewNote != "" {
		b.WriteString("\n" + m.styles.Label.Render("Note") + " " + wordwrap.String(v.ReviewNote, width) + "\n")
	}
	m.viewport.SetContent(b.String())
}

func (m Model) renderStatus() string {
	switch {
	case m.errorMsg != "":
		return m.styles.Error.Render(m.errorMsg)
	case m.statusMessage != "":
		return m.styles.Status.Render(m.statusMessage)
	default:
		return ""
	}
}
