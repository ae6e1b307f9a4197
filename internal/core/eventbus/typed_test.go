package eventbus_test

import (
	"encoding/json"
	"testing"

	"github.com/colonyops/vitals/internal/core/eventbus"
	"github.com/colonyops/vitals/internal/core/eventbus/testbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	want := eventbus.Insight{Title: "Low activity", Description: "You've been sedentary."}

	tests := []struct {
		name    string
		payload any
		wantErr bool
	}{
		{name: "typed value", payload: want},
		{name: "pointer", payload: &want},
		{name: "raw message", payload: json.RawMessage(`{"title":"Low activity","description":"You've been sedentary."}`)},
		{name: "bytes", payload: []byte(`{"title":"Low activity","description":"You've been sedentary."}`)},
		{name: "string", payload: `{"title":"Low activity","description":"You've been sedentary."}`},
		{name: "generic map", payload: map[string]any{"title": "Low activity", "description": "You've been sedentary."}},
		{name: "wrong type", payload: 42, wantErr: true},
		{name: "nil", payload: nil, wantErr: true},
		{name: "nil pointer", payload: (*eventbus.Insight)(nil), wantErr: true},
		{name: "invalid json", payload: json.RawMessage(`{"title":`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eventbus.Decode[eventbus.Insight](tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecode_UnencodablePayload(t *testing.T) {
	_, err := eventbus.Decode[eventbus.Insight](make(chan int))
	require.ErrorIs(t, err, eventbus.ErrPayloadType)
}

func TestSubscribeReminders_DecodesGenericSlice(t *testing.T) {
	tb := testbus.New(t)

	var got []eventbus.Reminder
	tb.SubscribeReminders(func(r []eventbus.Reminder) { got = r })

	tb.Dispatch(eventbus.EventReminders, []any{
		map[string]any{"title": "Drink water", "category": "hydration", "time": "10:00"},
		map[string]any{"title": "Stretch"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "hydration", got[0].Category)
	assert.Equal(t, "Stretch", got[1].Title)
	assert.Empty(t, tb.Errors())
}

func TestSubscribeReminders_DecodesRawBatch(t *testing.T) {
	tb := testbus.New(t)

	var got []eventbus.Reminder
	tb.SubscribeReminders(func(r []eventbus.Reminder) { got = r })

	tb.Dispatch(eventbus.EventReminders, json.RawMessage(`[
		{"title":"Drink water","category":"hydration","time":"10:00"},
		{"title":"Stretch","category":"mobility","time":"11:30"}
	]`))

	require.Len(t, got, 2)
	assert.Equal(t, "Drink water", got[0].Title)
	assert.Equal(t, "mobility", got[1].Category)
	assert.Equal(t, "11:30", got[1].Time)
}

func TestOn_DecodeFailureIsIsolatedHandlerError(t *testing.T) {
	tb := testbus.New(t)

	typedCalled := false
	rawCalled := false
	tb.SubscribeNewInsight(func(eventbus.Insight) { typedCalled = true })
	tb.Subscribe(eventbus.EventNewInsight, func(any) error { rawCalled = true; return nil })

	tb.Dispatch(eventbus.EventNewInsight, json.RawMessage(`"not an object"`))

	assert.False(t, typedCalled)
	assert.True(t, rawCalled)
	require.Len(t, tb.Errors(), 1)
	assert.Contains(t, tb.Errors()[0].Error(), "decode new_insight payload")
}

func TestDispatchHelpers_ReachTypedSubscribers(t *testing.T) {
	tb := testbus.New(t)

	var (
		reminder eventbus.Reminder
		insights []eventbus.Insight
		failed   eventbus.ConnectionFailedPayload
	)
	tb.SubscribeNewReminder(func(r eventbus.Reminder) { reminder = r })
	tb.SubscribeInsights(func(i []eventbus.Insight) { insights = i })
	tb.SubscribeConnectionFailed(func(p eventbus.ConnectionFailedPayload) { failed = p })

	tb.DispatchNewReminder(eventbus.Reminder{Title: "Walk"})
	tb.DispatchInsights([]eventbus.Insight{{Title: "a"}, {Title: "b"}})
	tb.DispatchConnectionFailed(eventbus.ConnectionFailedPayload{SessionID: "s1", Attempts: 3})

	assert.Equal(t, "Walk", reminder.Title)
	assert.Len(t, insights, 2)
	assert.Equal(t, 3, failed.Attempts)
	tb.AssertDispatched(t, eventbus.EventConnectionFailed)
	tb.AssertNotDispatched(t, eventbus.EventReminders)
}
