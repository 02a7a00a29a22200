package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows invoice listings. Empty fields match everything.
type ListFilter struct {
	PatientID string
	DoctorID  string
	Status    string
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Invoice, error)
	// ListDue returns SENT and PARTIALLY_PAID invoices due before the given day.
	ListDue(ctx context.Context, before time.Time) ([]*Invoice, error)
	NextSequence(ctx context.Context) (int64, error)
}
