package appointment

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows appointment listings. Empty fields match everything.
type ListFilter struct {
	PatientID string
	DoctorID  string
	Status    string
}

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error)
	// ListByDoctor returns every appointment of the doctor by date and time.
	ListByDoctor(ctx context.Context, doctorID string) ([]*Appointment, error)
}
