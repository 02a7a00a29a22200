package calendar

import (
	"time"

	"github.com/google/uuid"
)

// Planner holds one calendar session: the user's own events, the events
// derived from appointments, and the current view, reference date and
// category filter. Mutations replace the event slice instead of editing it in
// place, so slices handed out earlier stay valid.
//
// A Planner is not safe for concurrent use.
type Planner struct {
	today    time.Time
	user     []Event
	derived  []Event
	revision uint64

	view     View
	ref      time.Time
	category Category

	memo struct {
		valid bool
		key   memoKey
		out   []Event
	}
}

type memoKey struct {
	revision uint64
	view     View
	ref      time.Time
	category Category
}

// NewPlanner starts a month view on today with all categories shown.
func NewPlanner(today time.Time) *Planner {
	t := Normalize(today)
	return &Planner{today: t, ref: t, view: ViewMonth, category: CategoryAll}
}

// Today returns the injected current day.
func (p *Planner) Today() time.Time { return p.today }

// View returns the current view.
func (p *Planner) View() View { return p.view }

// Reference returns the current reference date.
func (p *Planner) Reference() time.Time { return p.ref }

// Category returns the current category filter.
func (p *Planner) Category() Category { return p.category }

// SetView switches view and keeps the reference date.
func (p *Planner) SetView(v View) { p.view = v }

// SetReference jumps to a given day.
func (p *Planner) SetReference(t time.Time) { p.ref = Normalize(t) }

// SetCategory changes the category filter.
func (p *Planner) SetCategory(c Category) {
	if c == "" {
		c = CategoryAll
	}
	p.category = c
}

// Next moves forward one period.
func (p *Planner) Next() { p.ref = Next(p.view, p.ref) }

// Previous moves back one period.
func (p *Planner) Previous() { p.ref = Previous(p.view, p.ref) }

// GoToToday resets the reference date to today.
func (p *Planner) GoToToday() { p.ref = p.today }

// TodayInView reports whether today is visible in the current view.
func (p *Planner) TodayInView() bool { return IsTodayInView(p.view, p.ref, p.today) }

// SetUserEvents replaces the user-entered events.
func (p *Planner) SetUserEvents(events []Event) {
	p.user = append([]Event(nil), events...)
	p.revision++
}

// SetAppointments replaces the appointment-derived events.
func (p *Planner) SetAppointments(appts []Appointment) {
	p.derived = AppointmentEvents(appts)
	p.revision++
}

// Events returns user events followed by appointment-derived events.
func (p *Planner) Events() []Event {
	out := make([]Event, 0, len(p.user)+len(p.derived))
	out = append(out, p.user...)
	return append(out, p.derived...)
}

// Add stores a new user event under a fresh id and returns it.
func (p *Planner) Add(e Event) Event {
	e.ID = uuid.NewString()
	e.Source = SourceUser
	next := make([]Event, len(p.user), len(p.user)+1)
	copy(next, p.user)
	p.user = append(next, e)
	p.revision++
	return e
}

// Edit replaces the user event with the same id. It reports whether one was
// found.
func (p *Planner) Edit(e Event) bool {
	next := make([]Event, len(p.user))
	found := false
	for i, cur := range p.user {
		if cur.ID == e.ID {
			e.Source = SourceUser
			next[i] = e
			found = true
			continue
		}
		next[i] = cur
	}
	if !found {
		return false
	}
	p.user = next
	p.revision++
	return true
}

// Delete removes the user event with the given id.
func (p *Planner) Delete(id string) bool {
	next := make([]Event, 0, len(p.user))
	for _, cur := range p.user {
		if cur.ID != id {
			next = append(next, cur)
		}
	}
	if len(next) == len(p.user) {
		return false
	}
	p.user = next
	p.revision++
	return true
}

// Visible returns the events shown by the current view. The result is
// cached until the events, view, reference date or category change; callers
// must not modify it.
func (p *Planner) Visible() []Event {
	key := memoKey{revision: p.revision, view: p.view, ref: p.ref, category: p.category}
	if p.memo.valid && p.memo.key == key {
		return p.memo.out
	}
	out := EventsForView(FilterCategory(p.Events(), p.category), p.view, p.ref)
	p.memo.valid, p.memo.key, p.memo.out = true, key, out
	return out
}

// MonthDays groups the visible events by day of the reference month.
func (p *Planner) MonthDays() map[int][]Event {
	return EventsByDay(p.Visible(), p.ref.Year(), int(p.ref.Month())-1)
}
