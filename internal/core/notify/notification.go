// Package notify holds the notification record model and the session's
// authoritative in-memory notification store.
package notify

import (
	"strings"
	"time"
)

// Category determines how a notification is presented. It never changes
// dispatch behaviour.
type Category string

const (
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
)

// ParseCategory maps a free-form category name to a Category. "alert" is an
// alias for warning; unknown names fall back to info.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning", "warn", "alert":
		return CategoryWarning
	case "success":
		return CategorySuccess
	case "error":
		return CategoryError
	default:
		return CategoryInfo
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryInfo, CategoryWarning, CategorySuccess, CategoryError:
		return true
	}
	return false
}

// Notification is a single notification record. Records are owned by a
// Store; values handed out by the store are copies.
type Notification struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Category  Category   `json:"category"`
	CreatedAt time.Time  `json:"created_at"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// Draft is the user-supplied part of a notification, before the store
// assigns identity and timestamps.
type Draft struct {
	Title    string
	Message  string
	Category Category
}
