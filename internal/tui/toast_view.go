package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/vitals/internal/core/styles"
	"github.com/colonyops/vitals/internal/core/toast"
)

const toastTickInterval = time.Second

type toastTickMsg time.Time

func scheduleToastTick() tea.Cmd {
	return tea.Tick(toastTickInterval, func(t time.Time) tea.Msg {
		return toastTickMsg(t)
	})
}

// renderToasts stacks the visible toasts vertically, oldest at top.
func renderToasts(toasts []toast.Toast, now time.Time) string {
	if len(toasts) == 0 {
		return ""
	}

	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		rendered = append(rendered, renderToast(t, now))
	}
	return strings.Join(rendered, "\n")
}

func renderToast(t toast.Toast, now time.Time) string {
	n := t.Notification
	category := string(n.Category)

	style := styles.ToastStyle.BorderForeground(styles.CategoryColor(category))
	if t.Closing {
		style = styles.ToastClosingStyle
	}

	title := styles.ToastTitleStyle.
		Foreground(styles.CategoryColor(category)).
		Render(styles.CategoryIcon(category) + " " + n.Title)

	lines := []string{title}
	if n.Message != "" && n.Message != n.Title {
		lines = append(lines, styles.ToastBodyStyle.Render(n.Message))
	}
	if !t.ExpiresAt.IsZero() {
		remaining := max(t.ExpiresAt.Sub(now).Round(time.Second), 0)
		lines = append(lines, styles.MutedStyle.Render(fmt.Sprintf("closes in %s", remaining)))
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
