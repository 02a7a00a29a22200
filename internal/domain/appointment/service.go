package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/calendar"
)

// Notifier receives appointment changes for live clients.
type Notifier interface {
	Notify(ctx context.Context, topic, kind, id string, payload any)
}

// Change kinds. Doctors receive them on their calendar topic with the
// projected calendar event; patients on Topic(patient) with the appointment.
const (
	KindAppointmentCreated = "appointment.created"
	KindAppointmentUpdated = "appointment.updated"
	KindAppointmentDeleted = "appointment.deleted"
)

// Topic is the live-update topic for a patient's appointments.
func Topic(patientID string) string { return "appointments/" + patientID }

type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "appointment").Logger(),
	}
}

// SetClock replaces the source of "today" used for date checks.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) today() time.Time {
	t := s.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) notify(ctx context.Context, kind string, a *Appointment) {
	s.notifyDoctor(ctx, kind, a.DoctorID, a)
	s.notifyPatient(ctx, kind, a)
}

// notifyDoctor publishes the calendar projection of a on the doctor's
// calendar topic.
func (s *Service) notifyDoctor(ctx context.Context, kind, doctorID string, a *Appointment) {
	if s.notifier == nil {
		return
	}
	eventID := calendar.AppointmentEventPrefix + a.ID.String()
	if kind == KindAppointmentDeleted {
		s.notifier.Notify(ctx, calendar.Topic(doctorID), kind, eventID, nil)
		return
	}
	ev := a.CalendarRecord().ToEvent()
	s.notifier.Notify(ctx, calendar.Topic(doctorID), kind, eventID, &ev)
}

func (s *Service) notifyPatient(ctx context.Context, kind string, a *Appointment) {
	if s.notifier == nil {
		return
	}
	var payload any = a
	if kind == KindAppointmentDeleted {
		payload = nil
	}
	s.notifier.Notify(ctx, Topic(a.PatientID), kind, a.ID.String(), payload)
}

// notPast rejects dates before today.
func (s *Service) notPast(a *Appointment) error {
	day, _ := a.Day()
	if day.Before(s.today()) {
		return invalid("date %s is in the past", a.Date)
	}
	return nil
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	a.ID = uuid.Nil
	a.normalize()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if err := s.notPast(a); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("doctor_id", a.DoctorID).Msg("appointment booked")
	s.notify(ctx, KindAppointmentCreated, a)
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAppointment applies the non-empty fields of patch. A new date must
// not be in the past; an unchanged one may be.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch *Appointment) (*Appointment, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a := existing.merge(patch)
	a.normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Date != existing.Date {
		if err := s.notPast(a); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	if a.DoctorID != existing.DoctorID {
		s.notifyDoctor(ctx, KindAppointmentDeleted, existing.DoctorID, existing)
		s.notifyDoctor(ctx, KindAppointmentCreated, a.DoctorID, a)
		s.notifyPatient(ctx, KindAppointmentUpdated, a)
	} else {
		s.notify(ctx, KindAppointmentUpdated, a)
	}
	return a, nil
}

// UpdateStatus sets the status. Setting the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := normalizeCode(status)
	if !validStatuses[next] {
		return nil, invalid("invalid appointment status: %s", status)
	}
	if a.Status == next {
		return a, nil
	}
	prev := a.Status
	a.Status = next
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", a.ID.String()).Str("from", prev).Str("to", a.Status).Msg("appointment status changed")
	s.notify(ctx, KindAppointmentUpdated, a)
	return a, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, KindAppointmentDeleted, a)
	return nil
}

func (s *Service) ListAppointments(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" {
		status := normalizeCode(f.Status)
		if !validStatuses[status] {
			return nil, 0, invalid("invalid appointment status: %s", f.Status)
		}
		f.Status = status
	}
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, ListFilter{PatientID: patientID}, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, ListFilter{DoctorID: doctorID}, limit, offset)
}

// CalendarSource feeds the doctor calendar from the appointment store.
func (s *Service) CalendarSource() calendar.AppointmentSource { return calendarSource{repo: s.repo} }

type calendarSource struct{ repo Repository }

func (c calendarSource) ListByDoctor(ctx context.Context, doctorID string) ([]calendar.Appointment, error) {
	items, err := c.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Appointment, 0, len(items))
	for _, a := range items {
		out = append(out, a.CalendarRecord())
	}
	return out, nil
}
