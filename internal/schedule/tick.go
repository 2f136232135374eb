package schedule

import (
	"regexp"
	"time"
)

// UnsetTime marks a time window as disabled. It never matches a tick and
// does not mean midnight (midnight is "12:00am").
const UnsetTime = "00:00"

// TickLayout is the Go time layout for ticks: 12-hour clock, no leading
// zero on the hour, two-digit minutes, lower-case meridiem.
const TickLayout = "3:04pm"

var timeOfDay = regexp.MustCompile(`^(1[0-2]|[1-9]):[0-5][0-9](am|pm)$`)

// FormatTick renders t as a tick string, e.g. "7:00am" or "12:05pm".
func FormatTick(t time.Time) string {
	return t.Format(TickLayout)
}

// ValidTime reports whether s is a well-formed tick string.
// The UnsetTime sentinel is not a valid time; callers check it separately.
func ValidTime(s string) bool {
	return timeOfDay.MatchString(s)
}
