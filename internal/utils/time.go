package utils

import (
	"strings"
	"time"
)

const layoutDate = "2006-01-02"

// ParseDate parses YYYY-MM-DD in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(layoutDate, strings.TrimSpace(s), loc)
}

// FormatDate formats time to YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(layoutDate)
}

// FormatLongDate renders "Monday, 1 December 2025". Unparseable input is
// returned unchanged.
func FormatLongDate(s string) string {
	t, err := time.Parse(layoutDate, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return t.Format("Monday, 2 January 2006")
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
