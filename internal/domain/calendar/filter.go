package calendar

import (
	"sort"
	"time"
)

// FilterCategory keeps the events of one category. CategoryAll and the empty
// category keep everything. The input slice is never modified.
func FilterCategory(events []Event, category Category) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if category == "" || category == CategoryAll || e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// EventsForView returns the events visible in view around ref, in display
// order.
//
// Month, week and day views keep every event overlapping the window, so a
// multi-day event that started earlier still shows. The list view instead
// only keeps events starting on or after the first of the reference month,
// even when an earlier event is still running on that day.
func EventsForView(events []Event, view View, ref time.Time) []Event {
	w := WindowFor(view, ref)
	out := make([]Event, 0, len(events))
	for _, e := range events {
		start, end := e.Range()
		if view == ViewList {
			if !start.Before(w.Start) {
				out = append(out, e)
			}
			continue
		}
		if w.Overlaps(start, end) {
			out = append(out, e)
		}
	}

	switch view {
	case ViewWeek, ViewDay:
		sortByStartTime(out, "00:00")
	case ViewList:
		sort.SliceStable(out, func(i, j int) bool {
			di, _ := out[i].Range()
			dj, _ := out[j].Range()
			if !di.Equal(dj) {
				return di.Before(dj)
			}
			return out[i].StartTime < out[j].StartTime
		})
	}
	return out
}

// EventsByDay groups events into the days of a 0-indexed month. Each day
// lists the events active on it, all-day events first, then by start time.
// Days without events are absent from the map.
func EventsByDay(events []Event, year, month int) map[int][]Event {
	days := make(map[int][]Event)
	n := DaysInMonth(year, month)
	for day := 1; day <= n; day++ {
		cell := Date(year, month, day)
		var active []Event
		for _, e := range events {
			if e.ActiveOn(cell) {
				active = append(active, e)
			}
		}
		if len(active) == 0 {
			continue
		}
		sortByStartTime(active, "")
		days[day] = active
	}
	return days
}

func sortByStartTime(events []Event, missing string) {
	key := func(e Event) string {
		if e.StartTime == "" {
			return missing
		}
		return e.StartTime
	}
	sort.SliceStable(events, func(i, j int) bool {
		return key(events[i]) < key(events[j])
	})
}

// IsTodayInView reports whether today falls inside what view shows for ref.
func IsTodayInView(view View, ref, today time.Time) bool {
	ref, today = Normalize(ref), Normalize(today)
	switch view {
	case ViewMonth:
		return ref.Year() == today.Year() && ref.Month() == today.Month()
	case ViewWeek, ViewList:
		return WindowFor(view, ref).Contains(today)
	case ViewDay:
		return ref.Equal(today)
	}
	return false
}

// Step moves ref by n units of the view's granularity. Month and list views
// move by calendar months and land on the first of the month.
func Step(view View, ref time.Time, n int) time.Time {
	ref = Normalize(ref)
	switch view {
	case ViewWeek:
		return AddDays(ref, 7*n)
	case ViewDay:
		return AddDays(ref, n)
	case ViewMonth, ViewList:
		return AddMonths(ref, n)
	}
	return ref
}

// Next returns the reference date one period after ref.
func Next(view View, ref time.Time) time.Time { return Step(view, ref, 1) }

// Previous returns the reference date one period before ref.
func Previous(view View, ref time.Time) time.Time { return Step(view, ref, -1) }
