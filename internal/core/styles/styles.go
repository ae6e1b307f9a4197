// Package styles provides shared lipgloss styles for CLI and TUI components.
package styles

import (
	glamouransi "github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Style exports.
var (
	// CLI styles.
	CommandHeaderStyle lipgloss.Style
	CommandStyle       lipgloss.Style
	DividerStyle       lipgloss.Style
	MutedStyle         lipgloss.Style

	// Dashboard chrome.
	TitleStyle       lipgloss.Style
	StatusBarStyle   lipgloss.Style
	HelpStyle        lipgloss.Style
	SelectedRowStyle lipgloss.Style
	UnreadRowStyle   lipgloss.Style
	ReadRowStyle     lipgloss.Style
	TimestampStyle   lipgloss.Style

	// Toasts.
	ToastStyle        lipgloss.Style
	ToastClosingStyle lipgloss.Style
	ToastTitleStyle   lipgloss.Style
	ToastBodyStyle    lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	CommandHeaderStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)
	CommandStyle = lipgloss.NewStyle().
		Foreground(p.Foreground)
	DividerStyle = lipgloss.NewStyle().
		Foreground(p.Muted)
	MutedStyle = lipgloss.NewStyle().
		Foreground(p.Muted)

	TitleStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true).
		Padding(0, 1)
	StatusBarStyle = lipgloss.NewStyle().
		Foreground(p.Foreground).
		Background(p.Surface).
		Padding(0, 1)
	HelpStyle = lipgloss.NewStyle().
		Foreground(p.Muted).
		Padding(0, 1)
	SelectedRowStyle = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)
	UnreadRowStyle = lipgloss.NewStyle().
		Foreground(p.Foreground).
		Bold(true)
	ReadRowStyle = lipgloss.NewStyle().
		Foreground(p.Muted)
	TimestampStyle = lipgloss.NewStyle().
		Foreground(p.Muted)

	ToastStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		Width(44)
	ToastClosingStyle = ToastStyle.
		BorderForeground(p.Muted).
		Foreground(p.Muted)
	ToastTitleStyle = lipgloss.NewStyle().Bold(true)
	ToastBodyStyle = lipgloss.NewStyle().Foreground(p.Foreground)
}

// CategoryColor returns the accent color for a notification category name.
func CategoryColor(category string) lipgloss.Color {
	switch category {
	case "warning":
		return CurrentPalette.Warning
	case "success":
		return CurrentPalette.Success
	case "error":
		return CurrentPalette.Error
	default:
		return CurrentPalette.Primary
	}
}

// CategoryIcon returns the icon for a notification category name.
func CategoryIcon(category string) string {
	switch category {
	case "warning":
		return IconWarning
	case "success":
		return IconSuccess
	case "error":
		return IconError
	default:
		return IconInfo
	}
}

// StatusStyle colors a check status: pass, warn or anything else as a
// failure.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "pass":
		return lipgloss.NewStyle().Foreground(CurrentPalette.Success)
	case "warn":
		return lipgloss.NewStyle().Foreground(CurrentPalette.Warning)
	default:
		return lipgloss.NewStyle().Foreground(CurrentPalette.Error)
	}
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}

func colorPtr(c lipgloss.Color) *string {
	if c == "" {
		return nil
	}
	s := string(c)
	return &s
}

// GlamourStyle returns a Glamour style config derived from the active theme.
func GlamourStyle() glamouransi.StyleConfig {
	cfg := glamourstyles.DarkStyleConfig

	fg := colorPtr(CurrentPalette.Foreground)
	primary := colorPtr(CurrentPalette.Primary)
	secondary := colorPtr(CurrentPalette.Secondary)
	muted := colorPtr(CurrentPalette.Muted)
	surface := colorPtr(CurrentPalette.Surface)

	cfg.Document.Color = fg

	cfg.Paragraph.Color = fg

	cfg.Heading.Color = primary
	cfg.H1.Color = fg
	cfg.H1.BackgroundColor = surface
	cfg.H2.Color = primary
	cfg.H3.Color = primary

	cfg.BlockQuote.Color = muted
	cfg.HorizontalRule.Color = muted

	cfg.Link.Color = secondary
	cfg.LinkText.Color = secondary

	cfg.Code.Color = secondary
	cfg.CodeBlock.Color = muted

	return cfg
}
