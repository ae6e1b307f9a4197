// Package tui implements the interactive notification dashboard.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/vitals/internal/core/connection"
	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/colonyops/vitals/internal/core/styles"
	"github.com/colonyops/vitals/internal/core/toast"
	"github.com/colonyops/vitals/internal/vitals"
)

// Session is the part of vitals.Session the dashboard drives.
type Session interface {
	Notifications() []notify.Notification
	Toasts() []toast.Toast
	State() connection.State
	UnreadCount() int

	MarkAsRead(id string)
	MarkAllAsRead()
	RemoveNotification(id string)
	ClearNotifications()
	DismissToast(id string)
	DismissAllToasts()
}

var _ Session = (*vitals.Session)(nil)

// Model is the bubbletea model for the dashboard.
type Model struct {
	session   Session
	sessionID string
	signal    *signal
	keys      keyMap
	help      help.Model
	now       func() time.Time

	width  int
	height int

	items   []notify.Notification
	toasts  []toast.Toast
	state   connection.State
	unread  int
	failure string

	cursor   int
	detail   bool
	ticking  bool
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithClock sets the time source used for toast countdowns.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New builds the dashboard for a running session.
func New(s *vitals.Session, sessionID string, opts ...Option) Model {
	sig := newSignal()
	s.OnChange(sig.notify)
	s.OnStateChange(func(_, _ connection.State) { sig.notify() })
	s.OnConnectionFailed(func(p eventbus.ConnectionFailedPayload) {
		sig.fail(fmt.Sprintf("connection failed after %d attempts: %v", p.Attempts, p.Err))
	})

	return newModel(s, sessionID, sig, opts...)
}

func newModel(s Session, sessionID string, sig *signal, opts ...Option) Model {
	m := Model{
		session:   s,
		sessionID: sessionID,
		signal:    sig,
		keys:      defaultKeyMap(),
		help:      help.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return m.signal.wait()
}

// refresh re-reads the session snapshot.
func (m *Model) refresh() {
	m.items = m.session.Notifications()
	m.toasts = m.session.Toasts()
	m.state = m.session.State()
	m.unread = m.session.UnreadCount()
	if msg := m.signal.takeFailure(); msg != "" {
		m.failure = msg
	}
	if m.state == connection.Connected {
		m.failure = ""
	}
	m.cursor = min(m.cursor, max(len(m.items)-1, 0))
	if len(m.items) == 0 {
		m.detail = false
	}
}

func (m Model) selected() (notify.Notification, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return notify.Notification{}, false
	}
	return m.items[m.cursor], true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case sessionChangedMsg:
		m.refresh()
		cmd := tea.Batch(m.signal.wait(), m.ensureTick())
		return m, cmd

	case toastTickMsg:
		m.ticking = false
		m.toasts = m.session.Toasts()
		cmd := m.ensureTick()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// ensureTick schedules a countdown redraw while any toast is counting down.
func (m *Model) ensureTick() tea.Cmd {
	if m.ticking {
		return nil
	}
	for _, t := range m.toasts {
		if !t.ExpiresAt.IsZero() {
			m.ticking = true
			return scheduleToastTick()
		}
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Open):
		if n, ok := m.selected(); ok {
			m.detail = !m.detail
			if m.detail {
				m.session.MarkAsRead(n.ID)
			}
		}

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.selected(); ok {
			m.session.MarkAsRead(n.ID)
		}

	case key.Matches(msg, m.keys.MarkAll):
		m.session.MarkAllAsRead()

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.selected(); ok {
			m.session.RemoveNotification(n.ID)
			m.detail = false
		}

	case key.Matches(msg, m.keys.Clear):
		m.session.ClearNotifications()
		m.detail = false

	case key.Matches(msg, m.keys.Dismiss):
		for _, t := range m.toasts {
			if !t.Closing {
				m.session.DismissToast(t.Notification.ID)
				break
			}
		}

	case key.Matches(msg, m.keys.DismissAll):
		m.session.DismissAllToasts()

	default:
		return m, nil
	}

	m.refresh()
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	if width == 0 {
		width = 100
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.TitleStyle.Render(styles.IconHeartPulse+" vitals"),
		m.statusLine(),
	)

	toastCol := renderToasts(m.toasts, m.now())
	mainWidth := width
	if toastCol != "" {
		mainWidth = max(width-lipgloss.Width(toastCol)-2, 20)
	}

	var main string
	if n, ok := m.selected(); ok && m.detail {
		main = renderDetail(n, mainWidth)
	} else {
		main = renderHistory(m.items, m.cursor, mainWidth)
	}
	main = lipgloss.NewStyle().Width(mainWidth).Render(main)

	body := main
	if toastCol != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, main, "  ", toastCol)
	}

	sections := []string{header, "", body, ""}
	if m.failure != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(styles.CurrentPalette.Error).Render(m.failure))
	}
	sections = append(sections, m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) statusLine() string {
	stateColor := styles.CurrentPalette.Warning
	switch m.state {
	case connection.Connected:
		stateColor = styles.CurrentPalette.Success
	case connection.Disconnected:
		stateColor = styles.CurrentPalette.Error
	}

	state := lipgloss.NewStyle().Foreground(stateColor).Render(styles.IconPlug + " " + m.state.String())
	unread := fmt.Sprintf("%s %d unread", styles.IconBell, m.unread)

	return styles.StatusBarStyle.Render(fmt.Sprintf("%s  %s  session %s", state, unread, m.sessionID))
}
