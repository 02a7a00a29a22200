package calendar

import (
	"context"
)

// EventRepository stores user-entered calendar events.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]Event, error)
	ListByOwnerPaged(ctx context.Context, ownerID string, limit, offset int) ([]*Event, int, error)
}

// AppointmentSource reads the appointments booked with a doctor.
type AppointmentSource interface {
	ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
}
