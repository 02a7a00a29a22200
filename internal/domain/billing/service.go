package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPaymentTermDays sets the due date when an invoice has none.
const DefaultPaymentTermDays = 30

// Notifier receives invoice changes for live clients.
type Notifier interface {
	Notify(ctx context.Context, topic, kind, id string, payload any)
}

// Change kinds published on a patient's invoice topic.
const (
	KindInvoiceCreated = "invoice.created"
	KindInvoiceUpdated = "invoice.updated"
	KindInvoiceDeleted = "invoice.deleted"
	KindPaymentAdded   = "invoice.payment"
)

type Service struct {
	invoices InvoiceRepository
	notifier Notifier
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(invoices InvoiceRepository, logger zerolog.Logger) *Service {
	return &Service{
		invoices: invoices,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "billing").Logger(),
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// Topic is the live-update topic for a patient's invoices.
func Topic(patientID string) string { return "invoices/" + patientID }

func (s *Service) notify(ctx context.Context, kind string, inv *Invoice) {
	if s.notifier == nil {
		return
	}
	var payload any = inv
	if kind == KindInvoiceDeleted {
		payload = nil
	}
	s.notifier.Notify(ctx, Topic(inv.PatientID), kind, inv.ID.String(), payload)
}

func (s *Service) today() time.Time {
	t := s.now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) nextNumber(ctx context.Context) (string, error) {
	seq, err := s.invoices.NextSequence(ctx)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%d-%06d", s.now().Year(), seq%1000000), nil
}

// prepare fills defaults, validates and derives totals.
func (s *Service) prepare(inv *Invoice) error {
	inv.normalize()
	if inv.Status == "" {
		inv.Status = StatusDraft
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = s.today()
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.InvoiceDate.AddDate(0, 0, DefaultPaymentTermDays)
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	return inv.Compute()
}

func (s *Service) CreateInvoice(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.Nil
	if err := s.prepare(inv); err != nil {
		return err
	}
	if inv.InvoiceNumber == "" {
		n, err := s.nextNumber(ctx)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = n
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return err
	}
	s.notify(ctx, KindInvoiceCreated, inv)
	return nil
}

func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

// UpdateInvoice replaces an invoice, keeping its number and creation time
// when the caller omits them.
func (s *Service) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	existing, err := s.invoices.GetByID(ctx, inv.ID)
	if err != nil {
		return err
	}
	if inv.InvoiceNumber == "" {
		inv.InvoiceNumber = existing.InvoiceNumber
	}
	if inv.Status == "" {
		inv.Status = existing.Status
	}
	if !validStatuses[inv.Status] {
		return invalid("invalid invoice status: %s", inv.Status)
	}
	if !CanTransition(existing.Status, inv.Status) {
		return fmt.Errorf("%s to %s: %w", existing.Status, inv.Status, ErrInvalidTransition)
	}
	if inv.Payments == nil {
		inv.Payments = existing.Payments
	}
	inv.CreatedAt = existing.CreatedAt
	if err := s.prepare(inv); err != nil {
		return err
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return err
	}
	s.notify(ctx, KindInvoiceUpdated, inv)
	return nil
}

func (s *Service) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.invoices.Delete(ctx, id); err != nil {
		return err
	}
	s.notify(ctx, KindInvoiceDeleted, inv)
	return nil
}

func (s *Service) ListInvoices(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, invalid("invalid invoice status: %s", f.Status)
	}
	return s.invoices.List(ctx, f, limit, offset)
}

// AddPayment records a payment and moves the invoice to PAID or
// PARTIALLY_PAID accordingly.
func (s *Service) AddPayment(ctx context.Context, invoiceID uuid.UUID, p Payment) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status == StatusCancelled {
		return nil, fmt.Errorf("payment on cancelled invoice: %w", ErrInvalidTransition)
	}
	p.Amount = p.Amount.withCurrency(inv.Currency)
	if p.Amount.Currency != inv.Currency {
		return nil, fmt.Errorf("payment in %s on %s invoice: %w", p.Amount.Currency, inv.Currency, ErrCurrencyMismatch)
	}
	if p.Status == "" {
		p.Status = PaymentCompleted
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	if p.TransactionID == "" {
		p.TransactionID = uuid.NewString()
	}
	p.Date = s.now()

	inv.Payments = append(inv.Payments, p)
	if err := inv.Compute(); err != nil {
		return nil, err
	}
	inv.settle()
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("invoice", inv.InvoiceNumber).
		Str("amount", p.Amount.String()).
		Str("status", inv.Status).
		Msg("payment recorded")
	s.notify(ctx, KindPaymentAdded, inv)
	return inv, nil
}

// UpdateStatus sets the status directly.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validStatuses[status] {
		return nil, invalid("invalid invoice status: %s", status)
	}
	if !CanTransition(inv.Status, status) {
		return nil, fmt.Errorf("%s to %s: %w", inv.Status, status, ErrInvalidTransition)
	}
	inv.Status = status
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}
	s.notify(ctx, KindInvoiceUpdated, inv)
	return inv, nil
}

// MarkOverdue flags every issued, unpaid invoice past its due date and
// returns how many changed. One failed update does not stop the rest.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	today := s.today()
	due, err := s.invoices.ListDue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list due invoices: %w", err)
	}
	var errs []error
	n := 0
	for _, inv := range due {
		if !inv.IsOverdue(today) {
			continue
		}
		inv.Status = StatusOverdue
		if err := s.invoices.Update(ctx, inv); err != nil {
			errs = append(errs, fmt.Errorf("invoice %s: %w", inv.InvoiceNumber, err))
			continue
		}
		s.notify(ctx, KindInvoiceUpdated, inv)
		n++
	}
	return n, errors.Join(errs...)
}

// Stats totals a patient's invoices in the currency of the first one.
// Patients without invoices get zero USD amounts.
func (s *Service) Stats(ctx context.Context, patientID string) (*Stats, error) {
	invs, err := s.invoices.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	cur := DefaultCurrency
	if len(invs) > 0 {
		cur = invs[0].Currency
	}
	st := &Stats{
		PatientID:        patientID,
		InvoiceCount:     len(invs),
		TotalBilled:      Zero(cur),
		TotalPaid:        Zero(cur),
		TotalOutstanding: Zero(cur),
	}
	for _, inv := range invs {
		if inv.Status == StatusCancelled {
			continue
		}
		if st.TotalBilled, err = st.TotalBilled.Add(inv.Totals.Total); err != nil {
			return nil, err
		}
		if st.TotalPaid, err = st.TotalPaid.Add(inv.Totals.Paid); err != nil {
			return nil, err
		}
		if st.TotalOutstanding, err = st.TotalOutstanding.Add(inv.Totals.Outstanding); err != nil {
			return nil, err
		}
	}
	return st, nil
}
