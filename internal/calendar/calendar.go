// Package calendar buckets instants into venue-local calendar days.
package calendar

import "time"

// DateLayout is the local-date key used for cache lookups ("2025-12-14").
const DateLayout = "2006-01-02"

// DayBounds returns the half-open [start, end) UTC interval covering the local
// calendar day that contains t in loc. DST transitions yield 23 or 25 hour days.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

// DateKey returns the local calendar date of t in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// LocalClock returns the local wall-clock time of t as "15:04".
func LocalClock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

// PromptDate renders t for LLM prompts, e.g. "Sunday, December 14, 2025 at 1:00 PM".
func PromptDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Monday, January 2, 2006 at 3:04 PM")
}

// LoadLocation resolves name, falling back when name is empty or unknown.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}
