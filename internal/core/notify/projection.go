package notify

import (
	"fmt"

	"github.com/colonyops/vitals/internal/core/eventbus"
)

// FromReminder projects a reminder event onto a notification draft. The
// reminder's category and time become the message body.
func FromReminder(r eventbus.Reminder) Draft {
	return Draft{
		Title:    r.Title,
		Message:  reminderMessage(r),
		Category: CategoryInfo,
	}
}

func reminderMessage(r eventbus.Reminder) string {
	switch {
	case r.Category != "" && r.Time != "":
		return fmt.Sprintf("%s at %s", r.Category, r.Time)
	case r.Category != "":
		return r.Category
	case r.Time != "":
		return "at " + r.Time
	default:
		return r.Title
	}
}

// FromInsight projects an insight event onto a notification draft. The
// insight's description becomes the message body.
func FromInsight(i eventbus.Insight) Draft {
	return Draft{
		Title:    i.Title,
		Message:  i.Description,
		Category: CategoryWarning,
	}
}
