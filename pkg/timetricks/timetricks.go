package timetricks

import (
	"time"
)

const (
	dayFormat = "20060102"
	Day       = 24 * time.Hour
)

// Window is the span [now-span, now+span] a refresh asks for.
func Window(now time.Time, span time.Duration) (from, to time.Time) {
	return now.Add(-span), now.Add(span)
}

func SameDay(t time.Time, t2 time.Time) bool {
	return t.Format(dayFormat) == t2.Format(dayFormat)
}

func TrimClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// UniqueDay returns a string representation of t that is unique by the day.
// Two times on the same calendar day return identical strings.
func UniqueDay(t time.Time) string {
	return t.Format(dayFormat)
}

// Relative names t's day relative to now: "Today", "Tomorrow", "Yesterday",
// the weekday within the coming week, or the date otherwise.
func Relative(t, now time.Time) string {
	days := int(TrimClock(t).Sub(TrimClock(now)).Round(time.Hour).Hours() / 24)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	case days == -1:
		return "Yesterday"
	case days > 1 && days < 7:
		return t.Weekday().String()
	default:
		return t.Format("01/02")
	}
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
