package calendar

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type failingEventRepo struct {
	EventRepository
	err error
}

func (f failingEventRepo) ListByOwner(context.Context, string) ([]Event, error) {
	return nil, f.err
}

type mockAppointmentSource struct {
	appts []Appointment
	err   error
}

func (m *mockAppointmentSource) ListByDoctor(_ context.Context, doctorID string) ([]Appointment, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, nil
}

var testToday = time.Date(2025, 5, 14, 11, 0, 0, 0, time.UTC)

func newTestService(repo EventRepository, appts AppointmentSource, logger zerolog.Logger) *Service {
	svc := NewService(repo, appts, logger)
	svc.SetClock(func() time.Time { return testToday })
	return svc
}

func validEvent() *Event {
	return &Event{Title: "Rounds", Day: 14, Month: 4, Year: 2025, DurationDays: 1, StartTime: "08:00", Category: CategoryWork}
}

func TestService_CreateAndGet(t *testing.T) {
	svc := newTestService(NewMemoryEventRepo("", nil), nil, zerolog.Nop())
	ctx := context.Background()

	e := validEvent()
	e.ID = "client-chosen"
	if err := svc.CreateEvent(ctx, "doc-1", e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == "" || e.ID == "client-chosen" {
		t.Errorf("expected a server-assigned id, got %q", e.ID)
	}
	got, err := svc.GetEvent(ctx, "doc-1", e.ID)
	if err != nil || got.Title != "Rounds" || got.Source != SourceUser {
		t.Fatalf("unexpected get result %+v, %v", got, err)
	}
	if _, err := svc.GetEvent(ctx, "doc-2", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("other owners must not see the event, got %v", err)
	}
}

func TestService_CreateEvent_Validation(t *testing.T) {
	svc := newTestService(NewMemoryEventRepo("", nil), nil, zerolog.Nop())
	tests := []struct {
		name   string
		mutate func(e *Event)
	}{
		{"empty title", func(e *Event) { e.Title = "  " }},
		{"zero duration", func(e *Event) { e.DurationDays = 0 }},
		{"month 12", func(e *Event) { e.Month = 12 }},
		{"Feb 29 non-leap", func(e *Event) { e.Month, e.Day = 1, 29 }},
		{"bad clock", func(e *Event) { e.StartTime = "9am" }},
		{"bad end clock", func(e *Event) { e.EndTime = "24:00" }},
		{"all category", func(e *Event) { e.Category = CategoryAll }},
		{"reserved category", func(e *Event) { e.Category = CategoryAppointments }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			if err := svc.CreateEvent(context.Background(), "doc-1", e); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
	if err := svc.CreateEvent(context.Background(), "", validEvent()); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("missing owner should be rejected, got %v", err)
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	svc := newTestService(NewMemoryEventRepo("", nil), nil, zerolog.Nop())
	ctx := context.Background()
	e := validEvent()
	svc.CreateEvent(ctx, "doc-1", e)

	upd := *e
	upd.Title = "Ward rounds"
	upd.DurationDays = 3
	if err := svc.UpdateEvent(ctx, "doc-1", &upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := svc.GetEvent(ctx, "doc-1", e.ID)
	if got.Title != "Ward rounds" || got.DurationDays != 3 {
		t.Errorf("update not applied: %+v", got)
	}

	if err := svc.UpdateEvent(ctx, "doc-2", &upd); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign update should be not found, got %v", err)
	}
	ro := upd
	ro.ID = "appointment-7"
	if err := svc.UpdateEvent(ctx, "doc-1", &ro); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("appointment events are read-only, got %v", err)
	}

	if err := svc.DeleteEvent(ctx, "doc-2", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign delete should be not found, got %v", err)
	}
	if err := svc.DeleteEvent(ctx, "doc-1", e.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetEvent(ctx, "doc-1", e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
}

func TestService_View_Month(t *testing.T) {
	sample, _ := DefaultSample()
	appts := &mockAppointmentSource{appts: []Appointment{
		{ID: "1", DoctorID: "doc-1", PatientName: "Ada", Issue: "Fever", Date: day(2025, 5, 7), Time: "08:30", Status: "Scheduled"},
		{ID: "2", DoctorID: "doc-2", PatientName: "Bob", Issue: "Cough", Date: day(2025, 5, 7), Time: "09:00", Status: "Scheduled"},
	}}
	svc := newTestService(NewMemoryEventRepo("doc-1", sample), appts, zerolog.Nop())

	res, err := svc.View(context.Background(), "doc-1", ViewQuery{Date: day(2025, 5, 20), IncludeAppointments: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.View != ViewMonth || res.Reference != "2025-05-20" || res.Today != "2025-05-14" {
		t.Errorf("unexpected header %+v", res)
	}
	if !res.TodayInView || res.Previous != "2025-04-01" || res.Next != "2025-06-01" {
		t.Errorf("unexpected navigation %+v", res)
	}
	if res.DataSource != DataSourceLive {
		t.Errorf("expected live data, got %s", res.DataSource)
	}
	// 7 sample events in May plus one appointment of this doctor.
	if len(res.Events) != 8 {
		t.Errorf("expected 8 events, got %v", ids(res.Events))
	}
	cell := res.Days[7]
	if len(cell) != 2 || cell[0].ID != "appointment-1" || cell[1].ID != "3" {
		t.Errorf("May 7 should list the 08:30 appointment then the 13:00 workshop, got %v", ids(cell))
	}
}

func TestService_View_CategoryAndWeek(t *testing.T) {
	sample, _ := DefaultSample()
	svc := newTestService(NewMemoryEventRepo("doc-1", sample), nil, zerolog.Nop())

	res, err := svc.View(context.Background(), "doc-1", ViewQuery{View: ViewWeek, Date: day(2025, 5, 7), Category: CategoryWork})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(res.Events); !equalIDs(got, []string{"2", "3"}) {
		t.Errorf("expected work events of the week sorted by time, got %v", got)
	}
	if res.Days != nil {
		t.Error("days are only computed for the month view")
	}
	if res.TodayInView {
		t.Error("May 14 is not in the week of May 4")
	}
}

func TestService_View_DefaultsToToday(t *testing.T) {
	svc := newTestService(NewMemoryEventRepo("", nil), nil, zerolog.Nop())
	res, err := svc.View(context.Background(), "doc-1", ViewQuery{View: ViewDay})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reference != "2025-05-14" || !res.TodayInView || res.Category != CategoryAll {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestService_View_AppointmentFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	sample, _ := DefaultSample()
	appts := &mockAppointmentSource{err: errors.New("appointments unavailable")}
	svc := newTestService(NewMemoryEventRepo("doc-1", sample), appts, zerolog.New(&buf))

	res, err := svc.View(context.Background(), "doc-1", ViewQuery{Date: day(2025, 5, 1), IncludeAppointments: true})
	if err != nil {
		t.Fatalf("appointment failure should not fail the view: %v", err)
	}
	if len(res.Events) != 7 || res.DataSource != DataSourceLive {
		t.Errorf("expected user events only, got %v (%s)", ids(res.Events), res.DataSource)
	}
	if !strings.Contains(buf.String(), "appointments unavailable") || !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Errorf("expected a warning, got %s", buf.String())
	}
}

func TestService_View_SampleFallback(t *testing.T) {
	sample, _ := DefaultSample()
	repo := failingEventRepo{err: errors.New("connection refused")}

	svc := newTestService(repo, nil, zerolog.Nop())
	if _, err := svc.View(context.Background(), "doc-1", ViewQuery{}); err == nil {
		t.Fatal("without sample data the store error must surface")
	}

	svc.SetSampleEvents(sample)
	res, err := svc.View(context.Background(), "doc-1", ViewQuery{View: ViewList, Date: day(2025, 5, 1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DataSource != DataSourceSample || len(res.Events) != 8 {
		t.Errorf("expected all 8 sample events from the sample source, got %d (%s)", len(res.Events), res.DataSource)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc = newTestService(failingEventRepo{err: context.Canceled}, nil, zerolog.Nop())
	svc.SetSampleEvents(sample)
	if _, err := svc.View(ctx, "doc-1", ViewQuery{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancellation should not fall back to samples, got %v", err)
	}
}

func TestService_ListEvents(t *testing.T) {
	sample, _ := DefaultSample()
	svc := newTestService(NewMemoryEventRepo("doc-1", sample), nil, zerolog.Nop())
	items, total, err := svc.ListEvents(context.Background(), "doc-1", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 8 || len(items) != 3 || items[0].ID != "1" {
		t.Errorf("unexpected page: total=%d first=%v", total, items)
	}
}

type recordingNotifier struct{ kinds, topics []string }

func (r *recordingNotifier) Notify(_ context.Context, topic, kind, _ string, _ any) {
	r.kinds = append(r.kinds, kind)
	r.topics = append(r.topics, topic)
}

func TestService_Notifications(t *testing.T) {
	svc := newTestService(NewMemoryEventRepo("", nil), nil, zerolog.Nop())
	rec := &recordingNotifier{}
	svc.SetNotifier(rec)
	ctx := context.Background()

	e := validEvent()
	svc.CreateEvent(ctx, "doc-1", e)
	svc.UpdateEvent(ctx, "doc-1", e)
	svc.DeleteEvent(ctx, "doc-2", e.ID)
	svc.DeleteEvent(ctx, "doc-1", e.ID)

	if !equalIDs(rec.kinds, []string{KindEventCreated, KindEventUpdated, KindEventDeleted}) {
		t.Errorf("unexpected notifications %v", rec.kinds)
	}
	for _, topic := range rec.topics {
		if topic != "calendar/doc-1" {
			t.Errorf("unexpected topic %q", topic)
		}
	}
}
