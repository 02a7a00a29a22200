package calendar

import (
	"fmt"
	"time"
)

// View is a calendar display granularity.
type View string

const (
	ViewMonth View = "month"
	ViewWeek  View = "week"
	ViewDay   View = "day"
	ViewList  View = "list"
)

// ParseView parses a view name; the empty string defaults to month.
func ParseView(s string) (View, error) {
	switch View(s) {
	case "":
		return ViewMonth, nil
	case ViewMonth, ViewWeek, ViewDay, ViewList:
		return View(s), nil
	}
	return "", fmt.Errorf("invalid view: %q", s)
}

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// All calendar arithmetic happens on UTC civil dates at midnight, so results
// never depend on the host time zone.

// Date builds the civil date for a 0-indexed month.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month+1), day, 0, 0, 0, 0, time.UTC)
}

// Normalize drops the time of day, keeping the calendar day as seen in t's
// location.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a civil date by n whole days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// FirstOfMonth returns the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the first day of the month n months away from t's month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days of a 0-indexed month.
func DaysInMonth(year, month int) int {
	return Date(year, month+1, 0).Day()
}

// WeekStart returns the Sunday at or before t.
func WeekStart(t time.Time) time.Time {
	d := Normalize(t)
	return AddDays(d, -int(d.Weekday()))
}

// Window is a half-open range of days. A nil End means unbounded.
type Window struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// WindowFor computes the day window shown by view around ref.
func WindowFor(view View, ref time.Time) Window {
	ref = Normalize(ref)
	var start, end time.Time
	switch view {
	case ViewWeek:
		start = WeekStart(ref)
		end = AddDays(start, 7)
	case ViewDay:
		start = ref
		end = AddDays(start, 1)
	case ViewList:
		return Window{Start: FirstOfMonth(ref)}
	default:
		start = FirstOfMonth(ref)
		end = AddMonths(ref, 1)
	}
	return Window{Start: start, End: &end}
}

// Bounded reports whether the window has an end.
func (w Window) Bounded() bool { return w.End != nil }

// Overlaps reports whether [start, end) intersects the window.
func (w Window) Overlaps(start, end time.Time) bool {
	if w.End != nil && !start.Before(*w.End) {
		return false
	}
	return end.After(w.Start)
}

// Contains reports whether the day falls inside the window.
func (w Window) Contains(day time.Time) bool {
	d := Normalize(day)
	if d.Before(w.Start) {
		return false
	}
	return w.End == nil || d.Before(*w.End)
}
