package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Data sources reported with a view.
const (
	DataSourceLive   = "live"
	DataSourceSample = "sample"
)

// Notifier receives event changes for live clients.
type Notifier interface {
	Notify(ctx context.Context, topic, kind, id string, payload any)
}

// Change kinds published on an owner's calendar topic.
const (
	KindEventCreated = "event.created"
	KindEventUpdated = "event.updated"
	KindEventDeleted = "event.deleted"
)

// Topic is the live-update topic for an owner's calendar.
func Topic(ownerID string) string { return "calendar/" + ownerID }

type Service struct {
	events       EventRepository
	appointments AppointmentSource
	notifier     Notifier
	sample       []Event
	now          func() time.Time
	logger       zerolog.Logger
}

func NewService(events EventRepository, appts AppointmentSource, logger zerolog.Logger) *Service {
	return &Service{events: events, appointments: appts, now: time.Now, logger: logger}
}

// SetClock replaces the source of "today".
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetSampleEvents configures the events served when the repository fails.
func (s *Service) SetSampleEvents(events []Event) {
	s.sample = append([]Event(nil), events...)
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) notify(ctx context.Context, ownerID, kind, id string, e *Event) {
	if s.notifier == nil {
		return
	}
	if e == nil {
		s.notifier.Notify(ctx, Topic(ownerID), kind, id, nil)
		return
	}
	s.notifier.Notify(ctx, Topic(ownerID), kind, id, e)
}

// Today returns the current civil day.
func (s *Service) Today() time.Time { return Normalize(s.now()) }

// -- Event CRUD --

func (s *Service) CreateEvent(ctx context.Context, ownerID string, e *Event) error {
	if ownerID == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidEvent)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Category == CategoryAppointments {
		return fmt.Errorf("%w: category %q is reserved for appointments", ErrInvalidEvent, e.Category)
	}
	e.ID = ""
	e.OwnerID = ownerID
	e.Source = SourceUser
	if err := s.events.Create(ctx, e); err != nil {
		return err
	}
	s.notify(ctx, ownerID, KindEventCreated, e.ID, e)
	return nil
}

func (s *Service) GetEvent(ctx context.Context, ownerID, id string) (*Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return e, nil
}

// UpdateEvent replaces a user event. Appointment-derived events are read-only.
func (s *Service) UpdateEvent(ctx context.Context, ownerID string, e *Event) error {
	if strings.HasPrefix(e.ID, AppointmentEventPrefix) {
		return fmt.Errorf("%w: appointment events are read-only", ErrInvalidEvent)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Category == CategoryAppointments {
		return fmt.Errorf("%w: category %q is reserved for appointments", ErrInvalidEvent, e.Category)
	}
	if _, err := s.GetEvent(ctx, ownerID, e.ID); err != nil {
		return err
	}
	e.OwnerID = ownerID
	e.Source = SourceUser
	if err := s.events.Update(ctx, e); err != nil {
		return err
	}
	s.notify(ctx, ownerID, KindEventUpdated, e.ID, e)
	return nil
}

func (s *Service) DeleteEvent(ctx context.Context, ownerID, id string) error {
	if _, err := s.GetEvent(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, ownerID, KindEventDeleted, id, nil)
	return nil
}

func (s *Service) ListEvents(ctx context.Context, ownerID string, limit, offset int) ([]*Event, int, error) {
	return s.events.ListByOwnerPaged(ctx, ownerID, limit, offset)
}

// -- Views --

// ViewQuery selects what a calendar view shows. A zero Date means today.
type ViewQuery struct {
	View                View
	Date                time.Time
	Category            Category
	IncludeAppointments bool
}

// ViewResult is a rendered calendar view.
type ViewResult struct {
	View        View            `json:"view"`
	Reference   string          `json:"reference"`
	Today       string          `json:"today"`
	Window      Window          `json:"window"`
	Category    Category        `json:"category"`
	TodayInView bool            `json:"today_in_view"`
	Previous    string          `json:"previous"`
	Next        string          `json:"next"`
	Events      []Event         `json:"events"`
	Days        map[int][]Event `json:"days,omitempty"`
	DataSource  string          `json:"data_source"`
}

// View loads the owner's events, merges appointment-derived events when
// asked, and computes the requested view.
func (s *Service) View(ctx context.Context, ownerID string, q ViewQuery) (*ViewResult, error) {
	if q.View == "" {
		q.View = ViewMonth
	}
	if q.Category == "" {
		q.Category = CategoryAll
	}
	today := s.Today()
	ref := today
	if !q.Date.IsZero() {
		ref = Normalize(q.Date)
	}

	events, source, err := s.loadEvents(ctx, ownerID, q.IncludeAppointments)
	if err != nil {
		return nil, err
	}

	visible := EventsForView(FilterCategory(events, q.Category), q.View, ref)
	res := &ViewResult{
		View:        q.View,
		Reference:   ref.Format(DateLayout),
		Today:       today.Format(DateLayout),
		Window:      WindowFor(q.View, ref),
		Category:    q.Category,
		TodayInView: IsTodayInView(q.View, ref, today),
		Previous:    Previous(q.View, ref).Format(DateLayout),
		Next:        Next(q.View, ref).Format(DateLayout),
		Events:      visible,
		DataSource:  source,
	}
	if q.View == ViewMonth {
		res.Days = EventsByDay(visible, ref.Year(), int(ref.Month())-1)
	}
	return res, nil
}

func (s *Service) loadEvents(ctx context.Context, ownerID string, withAppointments bool) ([]Event, string, error) {
	source := DataSourceLive
	events, err := s.events.ListByOwner(ctx, ownerID)
	if err != nil {
		if s.sample == nil || errors.Is(err, context.Canceled) {
			return nil, "", fmt.Errorf("load calendar events: %w", err)
		}
		s.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("calendar store unavailable, serving sample events")
		events = append([]Event(nil), s.sample...)
		source = DataSourceSample
	}

	if withAppointments && s.appointments != nil {
		appts, err := s.appointments.ListByDoctor(ctx, ownerID)
		if err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", ownerID).Msg("failed to load appointments for calendar")
		} else {
			events = append(events, AppointmentEvents(appts)...)
		}
	}
	return events, source, nil
}
