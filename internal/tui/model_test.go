package tui

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/vitals/internal/core/clock"
	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/connection"
	"github.com/colonyops/vitals/internal/core/loop"
	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/colonyops/vitals/internal/core/toast"
	"github.com/colonyops/vitals/internal/vitals"
	"github.com/colonyops/vitals/pkg/tuitest"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*vitals.Session, *clock.Fake, Model) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	fake := clock.NewFake(epoch)
	n := 0
	s := vitals.NewSession(&cfg, nil,
		vitals.WithClock(fake),
		vitals.WithExecutor(loop.Inline{}),
		vitals.WithIDGenerator(func() string { n++; return fmt.Sprintf("n%d", n) }),
	)
	t.Cleanup(s.Close)

	return s, fake, newModel(s, "s1", newSignal(), WithClock(fake.Now))
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func TestModel_RendersHistoryAndToasts(t *testing.T) {
	s, _, m := setup(t)
	s.AddNotification("CPU", "load is high", notify.CategoryWarning)
	s.AddNotification("Walk", "Activity at 15:00", notify.CategoryInfo)

	m = update(t, m, sessionChangedMsg{})
	view := tuitest.StripANSI(m.View())

	assert.Contains(t, view, "CPU: load is high")
	assert.Contains(t, view, "Walk: Activity at 15:00")
	assert.Contains(t, view, "2 unread")
	assert.Contains(t, view, "closes in 5s")
	assert.Contains(t, view, connection.Disconnected.String())
	assert.Contains(t, view, "session s1")
}

func TestModel_EmptyView(t *testing.T) {
	_, _, m := setup(t)
	assert.Contains(t, m.View(), "no notifications")
}

func TestModel_MarkAllRead(t *testing.T) {
	s, _, m := setup(t)
	s.AddNotification("a", "", notify.CategoryInfo)
	s.AddNotification("b", "", notify.CategoryInfo)
	m = update(t, m, sessionChangedMsg{})

	m = update(t, m, tuitest.KeyPressString("R"))

	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 0, m.unread)
	assert.Empty(t, m.toasts)
}

func TestModel_CursorAndDelete(t *testing.T) {
	s, _, m := setup(t)
	for i := range 3 {
		s.AddNotification(fmt.Sprintf("t%d", i), "", notify.CategoryInfo)
	}
	m = update(t, m, sessionChangedMsg{})

	m = update(t, m, tuitest.KeyDown())
	m = update(t, m, tuitest.KeyDown())
	m = update(t, m, tuitest.KeyDown())
	assert.Equal(t, 2, m.cursor)

	m = update(t, m, tuitest.KeyPressString("d"))
	require.Len(t, s.Notifications(), 2)
	assert.Equal(t, 1, m.cursor, "cursor clamped after delete")

	m = update(t, m, tuitest.KeyUp())
	assert.Equal(t, 0, m.cursor)

	m = update(t, m, tuitest.KeyPressString("C"))
	assert.Empty(t, s.Notifications())
	assert.Equal(t, 0, m.cursor)
}

func TestModel_OpenMarksRead(t *testing.T) {
	s, _, m := setup(t)
	id := s.AddNotification("CPU", "high", notify.CategoryWarning)
	m = update(t, m, sessionChangedMsg{})

	m = update(t, m, tuitest.KeyEnter())
	assert.True(t, m.detail)

	n := s.Notifications()[0]
	assert.Equal(t, id, n.ID)
	assert.True(t, n.Read)

	m = update(t, m, tuitest.KeyEnter())
	assert.False(t, m.detail)
}

func TestModel_DismissToast(t *testing.T) {
	s, fake, m := setup(t)
	s.AddNotification("a", "", notify.CategoryInfo)
	s.AddNotification("b", "", notify.CategoryInfo)
	m = update(t, m, sessionChangedMsg{})

	m = update(t, m, tuitest.KeyPressString("x"))
	require.Len(t, m.toasts, 2)
	assert.True(t, m.toasts[0].Closing)
	assert.False(t, m.toasts[1].Closing)

	m = update(t, m, tuitest.KeyPressString("x"))
	assert.True(t, m.toasts[1].Closing)

	fake.Advance(toast.DefaultExitDelay)
	m = update(t, m, sessionChangedMsg{})
	assert.Empty(t, m.toasts)
	assert.Equal(t, 0, m.unread)
}

func TestModel_DismissAllToasts(t *testing.T) {
	s, _, m := setup(t)
	s.AddNotification("a", "", notify.CategoryInfo)
	s.AddNotification("b", "", notify.CategoryInfo)
	m = update(t, m, sessionChangedMsg{})

	m = update(t, m, tuitest.KeyPressString("X"))
	for _, ts := range m.toasts {
		assert.True(t, ts.Closing)
	}
}

func TestModel_TickOnlyWhileCountingDown(t *testing.T) {
	s, _, m := setup(t)

	_, cmd := m.Update(toastTickMsg(epoch))
	assert.Nil(t, cmd)

	s.AddNotification("a", "", notify.CategoryInfo)
	next, cmd := m.Update(sessionChangedMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, next.(Model).ticking)
}

func TestModel_ConnectionFailureShown(t *testing.T) {
	_, _, m := setup(t)
	m.signal.fail("connection failed after 3 attempts: refused")

	m = update(t, m, sessionChangedMsg{})
	assert.Contains(t, m.View(), "connection failed after 3 attempts")
}

func TestModel_Quit(t *testing.T) {
	_, _, m := setup(t)

	next, cmd := m.Update(tuitest.KeyPressString("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, "", next.(Model).View())
}

func TestRenderToast(t *testing.T) {
	n := notify.Notification{ID: "n1", Title: "CPU", Message: "high", Category: notify.CategoryWarning}

	out := renderToast(toast.Toast{Notification: n, ExpiresAt: epoch.Add(3 * time.Second)}, epoch)
	assert.Contains(t, out, "CPU")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "closes in 3s")

	out = renderToast(toast.Toast{Notification: n, Closing: true}, epoch)
	assert.NotContains(t, out, "closes in")
}

func TestDetailMarkdown(t *testing.T) {
	readAt := epoch.Add(time.Minute)
	md := detailMarkdown(notify.Notification{
		Title:     "CPU",
		Message:   "high",
		Category:  notify.CategoryWarning,
		CreatedAt: epoch,
		ReadAt:    &readAt,
	})

	assert.Contains(t, md, "# CPU")
	assert.Contains(t, md, "high")
	assert.Contains(t, md, "*warning*")
	assert.Contains(t, md, "read 08:01:00")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hell…", truncate("hello world", 5))
}

func TestModel_WindowSize(t *testing.T) {
	s, _, m := setup(t)
	s.AddNotification("CPU", "load is high", notify.CategoryWarning)

	m = update(t, m, tuitest.WindowSize(100, 30))
	m = update(t, m, sessionChangedMsg{})

	assert.Equal(t, 100, m.width)
	assert.Equal(t, 30, m.height)
	assert.Contains(t, tuitest.StripANSI(m.View()), "CPU: load is high")
}
