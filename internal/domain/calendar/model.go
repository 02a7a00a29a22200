package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by repositories when an event does not exist.
	ErrNotFound = errors.New("event not found")
	// ErrInvalidEvent wraps every rejection of caller input.
	ErrInvalidEvent = errors.New("invalid event")
)

// Category is an open set of event categories. The synthetic
// CategoryAppointments value is not part of EventCategories because it is
// only ever produced from appointment records.
type Category string

const (
	CategoryAll          Category = "all"
	CategoryPersonal     Category = "personal"
	CategoryWork         Category = "work"
	CategoryTravel       Category = "travel"
	CategoryFriends      Category = "friends"
	CategoryImportant    Category = "important"
	CategoryAppointments Category = "appointments"
)

// EventCategories lists the categories a user can pick for their own events.
var EventCategories = []Category{
	CategoryPersonal, CategoryWork, CategoryTravel, CategoryFriends, CategoryImportant,
}

// Source tells where an event came from.
type Source string

const (
	SourceUser        Source = "user"
	SourceAppointment Source = "appointment"
)

// Event is the projected shape shared by user-entered and appointment-derived
// calendar events. Month is 0-indexed. An empty StartTime means all-day.
type Event struct {
	ID            string    `db:"id" json:"id" yaml:"id"`
	OwnerID       string    `db:"owner_id" json:"owner_id,omitempty" yaml:"-"`
	Day           int       `db:"day" json:"day" yaml:"day"`
	Month         int       `db:"month" json:"month" yaml:"month"`
	Year          int       `db:"year" json:"year" yaml:"year"`
	Title         string    `db:"title" json:"title" yaml:"title"`
	Emoji         string    `db:"emoji" json:"emoji,omitempty" yaml:"emoji,omitempty"`
	StartTime     string    `db:"start_time" json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime       string    `db:"end_time" json:"end_time,omitempty" yaml:"end_time,omitempty"`
	DurationDays  int       `db:"duration_days" json:"duration_days" yaml:"duration_days"`
	ColorGradient string    `db:"color_gradient" json:"color_gradient,omitempty" yaml:"color_gradient,omitempty"`
	Category      Category  `db:"category" json:"category" yaml:"category"`
	Source        Source    `db:"-" json:"source" yaml:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at,omitempty" yaml:"-"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at,omitempty" yaml:"-"`
}

// Range returns the half-open day interval [start, end) the event occupies.
func (e Event) Range() (time.Time, time.Time) {
	start := Date(e.Year, e.Month, e.Day)
	return start, AddDays(start, e.DurationDays)
}

// ActiveOn reports whether the event occupies the given calendar day.
func (e Event) ActiveOn(day time.Time) bool {
	start, end := e.Range()
	d := Normalize(day)
	return !d.Before(start) && d.Before(end)
}

// AllDay reports whether the event has no time of day.
func (e Event) AllDay() bool { return e.StartTime == "" }

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validate checks the fields a form would normally constrain.
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if e.DurationDays < 1 {
		return fmt.Errorf("%w: duration_days must be at least 1, got %d", ErrInvalidEvent, e.DurationDays)
	}
	if e.Month < 0 || e.Month > 11 {
		return fmt.Errorf("%w: month must be between 0 and 11, got %d", ErrInvalidEvent, e.Month)
	}
	if e.Day < 1 || e.Day > DaysInMonth(e.Year, e.Month) {
		return fmt.Errorf("%w: day %d is not valid for %04d-%02d", ErrInvalidEvent, e.Day, e.Year, e.Month+1)
	}
	if e.StartTime != "" && !clockPattern.MatchString(e.StartTime) {
		return fmt.Errorf("%w: invalid start_time: %q", ErrInvalidEvent, e.StartTime)
	}
	if e.EndTime != "" && !clockPattern.MatchString(e.EndTime) {
		return fmt.Errorf("%w: invalid end_time: %q", ErrInvalidEvent, e.EndTime)
	}
	if e.Category == "" || e.Category == CategoryAll {
		return fmt.Errorf("%w: invalid category: %q", ErrInvalidEvent, e.Category)
	}
	return nil
}

// Appointment is the subset of an appointment record the calendar needs.
type Appointment struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctor_id"`
	PatientName string    `json:"patient_name"`
	Issue       string    `json:"issue"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
}

// AppointmentEventPrefix prefixes the ids of appointment-derived events.
const AppointmentEventPrefix = "appointment-"

// ToEvent projects the appointment onto a read-only one-day calendar event.
func (a Appointment) ToEvent() Event {
	d := Normalize(a.Date)
	emoji, gradient := "🏥", "from-blue-500 to-indigo-600"
	switch strings.ToLower(a.Status) {
	case "completed":
		emoji, gradient = "✅", "from-green-500 to-emerald-600"
	case "cancelled":
		emoji, gradient = "❌", "from-red-500 to-rose-600"
	}
	start := a.Time
	if len(start) > 5 {
		start = start[:5]
	}
	return Event{
		ID:            AppointmentEventPrefix + a.ID,
		OwnerID:       a.DoctorID,
		Day:           d.Day(),
		Month:         int(d.Month()) - 1,
		Year:          d.Year(),
		Title:         a.PatientName + " - " + a.Issue,
		Emoji:         emoji,
		StartTime:     start,
		DurationDays:  1,
		ColorGradient: gradient,
		Category:      CategoryAppointments,
		Source:        SourceAppointment,
	}
}

// AppointmentEvents converts appointment records in order.
func AppointmentEvents(appts []Appointment) []Event {
	out := make([]Event, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ToEvent())
	}
	return out
}
