// Package eventbus provides the typed publish/subscribe router that fans
// push-channel events out to interested consumers.
package eventbus

// Event identifies the semantic category of a dispatched message. Values
// coming off the wire are used verbatim, so unknown types are valid events
// that simply have no subscribers.
type Event string

// Keep list sorted A-Z.
const (
	EventConnectionFailed Event = "connection_failed"
	EventInsights         Event = "insights"
	EventNewInsight       Event = "new_insight"
	EventNewReminder      Event = "new_reminder"
	EventReminders        Event = "reminders"
)

// Reminder is the wire shape of a scheduled health reminder, carried by
// EventReminders (as an array) and EventNewReminder.
type Reminder struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Time     string `json:"time"`
}

// Insight is the wire shape of a generated health insight, carried by
// EventInsights (as an array) and EventNewInsight.
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ConnectionFailedPayload is dispatched when the push channel gives up
// reconnecting.
type ConnectionFailedPayload struct {
	SessionID string
	Attempts  int
	Err       error
}
