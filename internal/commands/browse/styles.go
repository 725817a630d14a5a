package browse

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tildaslashalef/critiq/internal/review"
)

// Gruvbox palette
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#98971a", Dark: "#b8bb26"}
	colorOrange = lipgloss.AdaptiveColor{Light: "#af3a03", Dark: "#fe8019"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#d79921", Dark: "#fabd2f"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#cc241d", Dark: "#fb4934"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#458588", Dark: "#83a598"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#928374", Dark: "#7c6f64"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#d5c4a1", Dark: "#504945"}
	colorText   = lipgloss.AdaptiveColor{Light: "#3c3836", Dark: "#fbf1c7"}
)

// Styles contains the styles used by the browser
type Styles struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Selected lipgloss.Style
	Item     lipgloss.Style
	Detail   lipgloss.Style
	Label    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Prompt   lipgloss.Style
	High     lipgloss.Style
	Medium   lipgloss.Style
	Low      lipgloss.Style
	Pending  lipgloss.Style
	Approved lipgloss.Style
	Rejected lipgloss.Style
}

// DefaultStyles returns the Gruvbox styles
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorGreen),
		Subtle:   lipgloss.NewStyle().Foreground(colorGray),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(colorText),
		Item:     lipgloss.NewStyle().Foreground(colorGray),
		Detail: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		Label:    lipgloss.NewStyle().Bold(true).Foreground(colorBlue),
		Status:   lipgloss.NewStyle().Foreground(colorGreen),
		Error:    lipgloss.NewStyle().Foreground(colorRed),
		Prompt:   lipgloss.NewStyle().Bold(true).Foreground(colorOrange),
		High:     lipgloss.NewStyle().Bold(true).Foreground(colorRed),
		Medium:   lipgloss.NewStyle().Foreground(colorYellow),
		Low:      lipgloss.NewStyle().Foreground(colorBlue),
		Pending:  lipgloss.NewStyle().Foreground(colorYellow),
		Approved: lipgloss.NewStyle().Foreground(colorGreen),
		Rejected: lipgloss.NewStyle().Foreground(colorRed),
	}
}

func (s Styles) severity(sev review.Severity) lipgloss.Style {
	switch sev {
	case review.SeverityHigh:
		return s.High
	case review.SeverityLow:
		return s.Low
	default:
		return s.Medium
	}
}

func (s Styles) status(st review.ViolationStatus) lipgloss.Style {
	switch st {
	case review.StatusApproved:
		return s.Approved
	case review.StatusRejected:
		return s.Rejected
	default:
		return s.Pending
	}
}
