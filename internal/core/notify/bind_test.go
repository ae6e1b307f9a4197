package notify_test

import (
	"encoding/json"
	"testing"

	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/eventbus/testbus"
	"github.com/colonyops/vitals/internal/core/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RemindersBatchAddsOneRecordPerElement(t *testing.T) {
	tb := testbus.New(t)
	s := notify.NewStore(tb.Router)

	tb.Dispatch(eventbus.EventReminders, json.RawMessage(`[
		{"title":"Take medication","category":"medication","time":"08:00"},
		{"title":"Drink water","category":"hydration","time":"10:00"}
	]`))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Take medication", list[0].Title)
	assert.Equal(t, "medication at 08:00", list[0].Message)
	assert.Equal(t, "hydration at 10:00", list[1].Message)
	for _, n := range list {
		assert.False(t, n.Read)
		assert.Equal(t, notify.CategoryInfo, n.Category)
	}
}

func TestStore_SingleEventsAddExactlyOneRecord(t *testing.T) {
	tb := testbus.New(t)
	s := notify.NewStore(tb.Router)

	tb.DispatchNewReminder(eventbus.Reminder{Title: "Stretch", Category: "mobility", Time: "15:00"})
	tb.Dispatch(eventbus.EventNewInsight, json.RawMessage(`{"title":"Low activity","description":"You've been sedentary."}`))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "mobility at 15:00", list[0].Message)
	assert.Equal(t, "Low activity", list[1].Title)
	assert.Equal(t, "You've been sedentary.", list[1].Message)
	assert.Equal(t, notify.CategoryWarning, list[1].Category)
}

func TestStore_GenericMapPayloadAddsRecord(t *testing.T) {
	tb := testbus.New(t)
	s := notify.NewStore(tb.Router)

	tb.Dispatch(eventbus.EventNewInsight, map[string]any{
		"title":       "Low activity",
		"description": "You've been sedentary.",
	})

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Low activity", list[0].Title)
	assert.Equal(t, "You've been sedentary.", list[0].Message)
	assert.False(t, list[0].Read)
	assert.Empty(t, tb.Errors())
}

func TestStore_InsightsStillDeliveredWhenSiblingHandlerPanics(t *testing.T) {
	tb := testbus.New(t)

	// Registered first so it runs before the store's handler.
	tb.Subscribe(eventbus.EventInsights, func(any) error { panic("chart widget exploded") })
	s := notify.NewStore(tb.Router)

	tb.Dispatch(eventbus.EventInsights, json.RawMessage(`[
		{"title":"a","description":"one"},
		{"title":"b","description":"two"},
		{"title":"c","description":"three"}
	]`))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{list[0].Message, list[1].Message, list[2].Message})
	assert.Len(t, tb.Panics(), 1)
}

func TestStore_UnrecognizedEventChangesNothing(t *testing.T) {
	tb := testbus.New(t)
	s := notify.NewStore(tb.Router)

	changes := 0
	s.Subscribe(func() { changes++ })

	assert.NotPanics(t, func() {
		tb.Dispatch("weekly_digest", json.RawMessage(`{"anything":true}`))
	})
	assert.Zero(t, s.Len())
	assert.Zero(t, changes)
}

func TestStore_MalformedPayloadAddsNothing(t *testing.T) {
	tb := testbus.New(t)
	s := notify.NewStore(tb.Router)

	tb.Dispatch(eventbus.EventReminders, json.RawMessage(`{"not":"an array"}`))

	assert.Zero(t, s.Len())
	assert.Len(t, tb.Errors(), 1)
}

func TestStore_CloseUnsubscribesFromRouter(t *testing.T) {
	tb := testbus.New(t)
	s := notify.NewStore(tb.Router)
	assert.Equal(t, 1, tb.HandlerCount(eventbus.EventNewInsight))

	s.Close()

	for _, e := range []eventbus.Event{
		eventbus.EventReminders, eventbus.EventInsights,
		eventbus.EventNewReminder, eventbus.EventNewInsight,
	} {
		assert.Zero(t, tb.HandlerCount(e), "event %s", e)
	}

	tb.DispatchNewInsight(eventbus.Insight{Title: "late"})
	assert.Zero(t, s.Len())
}
