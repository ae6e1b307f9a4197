package vitals

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/vitals/internal/core/clock"
	"github.com/colonyops/vitals/internal/core/config"
	"github.com/colonyops/vitals/internal/core/connection"
	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/loop"
	"github.com/colonyops/vitals/internal/core/notify"
)

var epoch = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type pipe struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newPipe() *pipe {
	return &pipe{frames: make(chan []byte, 8), done: make(chan struct{})}
}

func (p *pipe) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-p.frames:
		return f, nil
	case <-p.done:
		return nil, connection.ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipe) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *pipe) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = "/tmp/vitals"
	cfg.Reconnect.Jitter = 0
	return &cfg
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func newInlineSession(t *testing.T, dialer connection.Dialer) (*Session, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(epoch)
	s := NewSession(testConfig(), dialer,
		WithClock(fake),
		WithExecutor(loop.Inline{}),
		WithIDGenerator(sequentialIDs()),
	)
	t.Cleanup(s.Close)
	return s, fake
}

func TestSession_NewInsightLifecycle(t *testing.T) {
	s, fake := newInlineSession(t, nil)

	s.Router().DispatchNewInsight(eventbus.Insight{Title: "CPU", Description: "high"})

	list := s.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "CPU", list[0].Title)
	assert.Equal(t, "high", list[0].Message)
	assert.Equal(t, notify.CategoryWarning, list[0].Category)
	assert.Equal(t, epoch, list[0].CreatedAt)
	assert.False(t, list[0].Read)

	toasts := s.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, list[0].ID, toasts[0].Notification.ID)
	assert.Equal(t, epoch.Add(5*time.Second), s.NextExpiry())

	fake.Advance(5 * time.Second)
	require.Len(t, s.Toasts(), 1)
	assert.True(t, s.Toasts()[0].Closing)
	assert.Equal(t, 1, s.UnreadCount())

	fake.Advance(300 * time.Millisecond)
	assert.Empty(t, s.Toasts())
	assert.Equal(t, 0, s.UnreadCount())
	require.Len(t, s.Notifications(), 1, "record kept after its toast closes")
	assert.True(t, s.Notifications()[0].Read)
	assert.True(t, s.NextExpiry().IsZero())
}

func TestSession_PlainObjectDispatch(t *testing.T) {
	s, _ := newInlineSession(t, nil)

	s.Router().Dispatch(eventbus.EventNewInsight, map[string]any{
		"title":       "Low activity",
		"description": "You've been sedentary.",
	})

	list := s.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "Low activity", list[0].Title)
	assert.Len(t, s.Toasts(), 1)
}

func TestSession_RemindersBatch(t *testing.T) {
	s, _ := newInlineSession(t, nil)

	s.Router().DispatchReminders([]eventbus.Reminder{
		{Title: "Stand up", Category: "Health", Time: "10:00"},
		{Title: "Hydrate", Category: "Health", Time: "11:00"},
	})

	list := s.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "Stand up", list[0].Title)
	assert.Equal(t, "Health at 10:00", list[0].Message)
	assert.Equal(t, "Hydrate", list[1].Title)
	assert.Len(t, s.Toasts(), 2)
}

func TestSession_ConsumerAPI(t *testing.T) {
	s, _ := newInlineSession(t, nil)

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = s.AddNotification(fmt.Sprintf("t%d", i), "m", notify.CategorySuccess)
	}
	assert.Equal(t, []string{"n1", "n2", "n3", "n4", "n5"}, ids)
	assert.Len(t, s.Toasts(), 3)

	s.MarkAsRead(ids[0])
	s.MarkAsRead(ids[0])
	assert.Equal(t, 4, s.UnreadCount())
	assert.Equal(t, ids[1], s.Toasts()[0].Notification.ID)

	s.RemoveNotification(ids[1])
	s.RemoveNotification("missing")
	assert.Len(t, s.Notifications(), 4)

	s.DismissToast(ids[2])
	assert.True(t, s.Toasts()[0].Closing)

	s.MarkAllAsRead()
	assert.Equal(t, 0, s.UnreadCount())
	assert.Empty(t, s.Toasts())

	s.ClearNotifications()
	assert.Empty(t, s.Notifications())

	assert.Equal(t, "n6", s.AddNotification("again", "m", notify.CategoryInfo))
}

func TestSession_OnChange(t *testing.T) {
	s, _ := newInlineSession(t, nil)

	calls := 0
	unsub := s.OnChange(func() { calls++ })

	s.AddNotification("t", "m", notify.CategoryInfo)
	assert.Positive(t, calls)

	unsub()
	before := calls
	s.AddNotification("t", "m", notify.CategoryInfo)
	assert.Equal(t, before, calls)
}

func TestSession_FramesFlowEndToEnd(t *testing.T) {
	p := newPipe()
	dialer := connection.DialerFunc(func(context.Context, string) (connection.Channel, error) {
		return p, nil
	})
	s, _ := newInlineSession(t, dialer)

	require.NoError(t, s.Start(context.Background(), "s1"))
	require.Eventually(t, func() bool { return s.State() == connection.Connected }, 2*time.Second, 5*time.Millisecond)

	p.frames <- []byte(`{"type":"new_reminder","payload":{"title":"Walk","category":"Activity","time":"15:00"}}`)
	p.frames <- []byte(`{"type":"unknown_event","payload":{}}`)
	p.frames <- []byte(`{"type":"insights","payload":[{"title":"HR","description":"elevated"}]}`)

	require.Eventually(t, func() bool { return len(s.Notifications()) == 2 }, 2*time.Second, 5*time.Millisecond)
	list := s.Notifications()
	assert.Equal(t, "Walk", list[0].Title)
	assert.Equal(t, "Activity at 15:00", list[0].Message)
	assert.Equal(t, "HR", list[1].Title)

	s.Close()
	assert.True(t, p.closed())
	assert.Equal(t, connection.Disconnected, s.State())
	assert.Empty(t, s.Notifications())
	assert.Empty(t, s.Toasts())
}

func TestSession_StartTwice(t *testing.T) {
	dialer := connection.DialerFunc(func(ctx context.Context, _ string) (connection.Channel, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s, _ := newInlineSession(t, dialer)

	require.NoError(t, s.Start(context.Background(), "s1"))
	assert.ErrorIs(t, s.Start(context.Background(), "s1"), ErrAlreadyStarted)
	assert.Equal(t, connection.Connecting, s.State())
}

func TestSession_Close(t *testing.T) {
	s, fake := newInlineSession(t, nil)
	s.AddNotification("t", "m", notify.CategoryInfo)

	s.Close()
	s.Close()

	assert.Equal(t, 0, fake.Pending(), "toast timers cancelled")
	assert.Empty(t, s.Notifications())
	assert.Empty(t, s.AddNotification("late", "m", notify.CategoryInfo))
	assert.ErrorIs(t, s.Start(context.Background(), "s1"), ErrClosed)

	s.Router().DispatchNewInsight(eventbus.Insight{Title: "ignored"})
	assert.Empty(t, s.Notifications())
}

func TestSession_ConnectionFailedSurfaces(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect.MaxAttempts = 2
	fake := clock.NewFake(epoch)
	dialer := connection.DialerFunc(func(context.Context, string) (connection.Channel, error) {
		return nil, fmt.Errorf("refused")
	})
	s := NewSession(cfg, dialer, WithClock(fake), WithExecutor(loop.Inline{}))
	t.Cleanup(s.Close)

	failed := make(chan eventbus.ConnectionFailedPayload, 1)
	s.OnConnectionFailed(func(p eventbus.ConnectionFailedPayload) { failed <- p })

	require.NoError(t, s.Start(context.Background(), "s1"))
	require.Eventually(t, func() bool { return s.State() == connection.Reconnecting }, 2*time.Second, 5*time.Millisecond)
	fake.Advance(cfg.Reconnect.BaseDelay)

	select {
	case p := <-failed:
		assert.Equal(t, "s1", p.SessionID)
		assert.Equal(t, 2, p.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("connection_failed not dispatched")
	}
	require.Eventually(t, func() bool { return s.State() == connection.Disconnected }, 2*time.Second, 5*time.Millisecond)
}

func TestSession_OwnLoop(t *testing.T) {
	cfg := testConfig()
	p := newPipe()
	dialer := connection.DialerFunc(func(context.Context, string) (connection.Channel, error) {
		return p, nil
	})
	s := NewSession(cfg, dialer, WithIDGenerator(sequentialIDs()))
	t.Cleanup(s.Close)

	require.Equal(t, "n1", s.AddNotification("before start", "m", notify.CategoryInfo))

	require.NoError(t, s.Start(context.Background(), "s1"))
	require.Eventually(t, func() bool { return s.State() == connection.Connected }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "n2", s.AddNotification("after start", "m", notify.CategoryInfo))
	p.frames <- []byte(`{"type":"new_insight","payload":{"title":"CPU","description":"high"}}`)
	require.Eventually(t, func() bool { return len(s.Notifications()) == 3 }, 2*time.Second, 5*time.Millisecond)

	s.MarkAllAsRead()
	assert.Equal(t, 0, s.UnreadCount())

	s.Close()
	assert.Empty(t, s.AddNotification("closed", "m", notify.CategoryInfo))
}
