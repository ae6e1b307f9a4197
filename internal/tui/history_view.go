package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/colonyops/vitals/internal/core/styles"
)

const timeLayout = "15:04:05"

// renderHistory renders the notification list, newest at the bottom like
// the store's insertion order.
func renderHistory(items []notify.Notification, cursor, width int) string {
	if len(items) == 0 {
		return styles.MutedStyle.Render(styles.IconBellSlash + "  no notifications")
	}

	rows := make([]string, 0, len(items))
	for i, n := range items {
		rows = append(rows, renderRow(n, i == cursor, width))
	}
	return strings.Join(rows, "\n")
}

func renderRow(n notify.Notification, selected bool, width int) string {
	marker := styles.IconCircle
	if !n.Read {
		marker = styles.IconDot
	}

	icon := lipgloss.NewStyle().
		Foreground(styles.CategoryColor(string(n.Category))).
		Render(styles.CategoryIcon(string(n.Category)))

	text := n.Title
	if n.Message != "" && n.Message != n.Title {
		text += ": " + n.Message
	}

	stamp := styles.TimestampStyle.Render(n.CreatedAt.Format(timeLayout))
	budget := max(width-lipgloss.Width(stamp)-8, 10)
	if lipgloss.Width(text) > budget {
		text = truncate(text, budget)
	}

	var body string
	switch {
	case selected:
		body = styles.SelectedRowStyle.Render(text)
	case n.Read:
		body = styles.ReadRowStyle.Render(text)
	default:
		body = styles.UnreadRowStyle.Render(text)
	}

	cursor := "  "
	if selected {
		cursor = styles.SelectedRowStyle.Render("> ")
	}
	return fmt.Sprintf("%s%s %s %s  %s", cursor, marker, icon, body, stamp)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:max(width-1, 0)]) + "…"
}

// detailMarkdown renders one notification as markdown for the detail pane.
func detailMarkdown(n notify.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	if n.Message != "" {
		fmt.Fprintf(&b, "%s\n\n", n.Message)
	}
	fmt.Fprintf(&b, "---\n\n*%s* · received %s", n.Category, n.CreatedAt.Format("Mon Jan 2 15:04:05"))
	if n.ReadAt != nil {
		fmt.Fprintf(&b, " · read %s", n.ReadAt.Format(timeLayout))
	}
	b.WriteString("\n")
	return b.String()
}

func renderDetail(n notify.Notification, width int) string {
	md := detailMarkdown(n)

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(styles.GlamourStyle()),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
