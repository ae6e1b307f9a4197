package logging

import "context"

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	eventTypeKey   contextKey = "event_type"
)

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithEventType adds an event type to the context.
func WithEventType(ctx context.Context, eventType string) context.Context {
	return context.WithValue(ctx, eventTypeKey, eventType)
}

// GetSessionID retrieves the session ID from the context.
// Returns empty string if not present.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// GetEventType retrieves the event type from the context.
// Returns empty string if not present.
func GetEventType(ctx context.Context) string {
	if id, ok := ctx.Value(eventTypeKey).(string); ok {
		return id
	}
	return ""
}
