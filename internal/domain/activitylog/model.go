package activitylog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itsaddyon/MediBridge/internal/platform/activity"
	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
)

// UnknownUser names the actor of entries without an identified account.
const UnknownUser = "Unknown"

// Entry is one line of the activity log.
type Entry struct {
	ID         uuid.UUID         `json:"id"`
	Kind       activity.Kind     `json:"type"`
	Action     string            `json:"action"`
	UserID     *uuid.UUID        `json:"userId,omitempty"`
	User       string            `json:"user"`
	Details    string            `json:"details"`
	Severity   activity.Severity `json:"severity"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	OccurredAt time.Time         `json:"timestamp"`
}

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Kind   activity.Kind
	Search string
	Since  time.Time
}

// Match applies the filter in memory. Search is a case-insensitive substring
// match over action, user and details.
func (f Filter) Match(e *Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && e.OccurredAt.Before(f.Since) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(e.Action), q) ||
		strings.Contains(strings.ToLower(e.User), q) ||
		strings.Contains(strings.ToLower(e.Details), q)
}

// Since resolves a named time range relative to now: today (from midnight
// UTC), week, month or all.
func Since(rng string, now time.Time) (time.Time, error) {
	now = now.UTC()
	switch rng {
	case "", "all":
		return time.Time{}, nil
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, apperr.Invalidf("range must be one of today, week, month, all")
	}
}
