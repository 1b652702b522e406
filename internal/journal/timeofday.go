// Package journal implements the conversation core of the journal bot:
// the period-of-day classifier, prompt pools, the reflection question
// cursor, and the conversation engine that turns inbound messages into
// journal entries and reply instructions.
package journal

import (
	"log/slog"
	"time"
)

// Period is a coarse classification of the time of day, used to choose a
// greeting pool.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodNoon      Period = "noon"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// PeriodAt classifies a point in time into a period of day. The mapping is
// total and monotonic: morning before 11:00, noon 11:00-13:59, afternoon
// 14:00-17:59, evening from 18:00.
func PeriodAt(t time.Time) Period {
	switch hour := t.Hour(); {
	case hour < 11:
		return PeriodMorning
	case hour < 14:
		return PeriodNoon
	case hour < 18:
		return PeriodAfternoon
	default:
		return PeriodEvening
	}
}

// LoadLocation resolves a timezone name, degrading to UTC when the name is
// empty or unknown rather than failing.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("Unknown timezone, falling back to UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

// startOfDay returns midnight of t's calendar date in t's location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
