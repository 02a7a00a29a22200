package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("invoice not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports caller input the service rejects.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Invoice statuses.
const (
	StatusDraft         = "DRAFT"
	StatusSent          = "SENT"
	StatusPaid          = "PAID"
	StatusPartiallyPaid = "PARTIALLY_PAID"
	StatusOverdue       = "OVERDUE"
	StatusCancelled     = "CANCELLED"
)

var validStatuses = map[string]bool{
	StatusDraft: true, StatusSent: true, StatusPaid: true,
	StatusPartiallyPaid: true, StatusOverdue: true, StatusCancelled: true,
}

// Payment statuses. Only completed payments count towards the paid amount.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

var validPaymentStatuses = map[string]bool{
	PaymentPending: true, PaymentCompleted: true, PaymentFailed: true, PaymentRefunded: true,
}

var validPaymentMethods = map[string]bool{
	"CASH": true, "CREDIT_CARD": true, "DEBIT_CARD": true, "INSURANCE": true, "BANK_TRANSFER": true,
}

// Item is one billed service or product.
type Item struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   Money  `json:"unit_price"`
	Total       *Money `json:"total,omitempty"`
	Category    string `json:"category,omitempty"` // CONSULTATION, PROCEDURE, MEDICATION, LAB_TEST
}

// LineTotal is the explicit total when given, else unit price times quantity.
func (it Item) LineTotal() Money {
	if it.Total != nil {
		return *it.Total
	}
	return it.UnitPrice.Times(it.Quantity)
}

type Insurance struct {
	Provider           string  `json:"provider"`
	PolicyNumber       string  `json:"policy_number,omitempty"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	Copay              Money   `json:"copay"`
}

type Payment struct {
	ID            string    `json:"id"`
	Amount        Money     `json:"amount"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Status        string    `json:"status"`
}

// Totals are derived from items, adjustments, insurance and payments; they
// are never stored.
type Totals struct {
	Subtotal              Money `json:"subtotal"`
	Tax                   Money `json:"tax"`
	Discount              Money `json:"discount"`
	Total                 Money `json:"total"`
	InsuranceCoverage     Money `json:"insurance_coverage"`
	PatientResponsibility Money `json:"patient_responsibility"`
	Paid                  Money `json:"paid"`
	Outstanding           Money `json:"outstanding"`
}

// Invoice maps to the invoice table.
type Invoice struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	InvoiceNumber  string     `db:"invoice_number" json:"invoice_number"`
	PatientID      string     `db:"patient_id" json:"patient_id"`
	DoctorID       string     `db:"doctor_id" json:"doctor_id,omitempty"`
	AppointmentID  string     `db:"appointment_id" json:"appointment_id,omitempty"`
	Currency       string     `db:"currency" json:"currency"`
	Items          []Item     `db:"items" json:"items"`
	Payments       []Payment  `db:"payments" json:"payments"`
	Insurance      *Insurance `db:"insurance" json:"insurance,omitempty"`
	TaxAmount      Money      `db:"tax_amount" json:"tax_amount"`
	DiscountAmount Money      `db:"discount_amount" json:"discount_amount"`
	Status         string     `db:"status" json:"status"`
	InvoiceDate    time.Time  `db:"invoice_date" json:"invoice_date"`
	DueDate        time.Time  `db:"due_date" json:"due_date"`
	Notes          string     `db:"notes" json:"notes,omitempty"`
	Totals         Totals     `db:"-" json:"totals"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// normalize fills the currency of every amount that names none.
func (inv *Invoice) normalize() {
	if inv.Currency == "" {
		inv.Currency = DefaultCurrency
	}
	inv.Currency = strings.ToUpper(inv.Currency)
	cur := inv.Currency
	for i := range inv.Items {
		inv.Items[i].UnitPrice = inv.Items[i].UnitPrice.withCurrency(cur)
		if t := inv.Items[i].Total; t != nil {
			v := t.withCurrency(cur)
			inv.Items[i].Total = &v
		}
	}
	for i := range inv.Payments {
		inv.Payments[i].Amount = inv.Payments[i].Amount.withCurrency(cur)
	}
	if inv.Insurance != nil {
		inv.Insurance.Copay = inv.Insurance.Copay.withCurrency(cur)
	}
	inv.TaxAmount = inv.TaxAmount.withCurrency(cur)
	inv.DiscountAmount = inv.DiscountAmount.withCurrency(cur)
}

// Compute derives Totals. Every amount must be in the invoice currency.
func (inv *Invoice) Compute() error {
	inv.normalize()
	cur := inv.Currency
	var t Totals
	var err error

	lines := make([]Money, 0, len(inv.Items))
	for _, it := range inv.Items {
		lines = append(lines, it.LineTotal())
	}
	if t.Subtotal, err = sum(cur, lines...); err != nil {
		return fmt.Errorf("subtotal: %w", err)
	}
	t.Tax, t.Discount = inv.TaxAmount, inv.DiscountAmount
	if t.Total, err = t.Subtotal.Add(t.Tax); err != nil {
		return fmt.Errorf("tax: %w", err)
	}
	if t.Total, err = t.Total.Sub(t.Discount); err != nil {
		return fmt.Errorf("discount: %w", err)
	}

	t.InsuranceCoverage = Zero(cur)
	t.PatientResponsibility = t.Total
	if inv.Insurance != nil {
		t.InsuranceCoverage = t.Total.Percent(inv.Insurance.CoveragePercentage)
		resp, _ := t.Total.Sub(t.InsuranceCoverage)
		if t.PatientResponsibility, err = resp.Add(inv.Insurance.Copay); err != nil {
			return fmt.Errorf("copay: %w", err)
		}
	}

	var paid []Money
	for _, p := range inv.Payments {
		if p.Status == PaymentCompleted {
			paid = append(paid, p.Amount)
		}
	}
	if t.Paid, err = sum(cur, paid...); err != nil {
		return fmt.Errorf("payments: %w", err)
	}
	t.Outstanding, _ = t.Total.Sub(t.Paid)

	inv.Totals = t
	return nil
}

// settle moves the status after a payment: fully covered invoices become
// PAID, partly covered ones PARTIALLY_PAID. Totals must be current.
func (inv *Invoice) settle() {
	switch {
	case inv.Totals.Outstanding.Amount <= 0:
		inv.Status = StatusPaid
	case inv.Totals.Paid.IsPositive():
		inv.Status = StatusPartiallyPaid
	}
}

// IsOverdue reports whether an unpaid issued invoice is past its due date.
func (inv *Invoice) IsOverdue(today time.Time) bool {
	if inv.Status != StatusSent && inv.Status != StatusPartiallyPaid {
		return false
	}
	if !inv.Totals.Outstanding.IsPositive() {
		return false
	}
	return inv.DueDate.Before(today)
}

// CanTransition reports whether a manual status change is allowed.
// Cancelled invoices are final.
func CanTransition(from, to string) bool {
	if !validStatuses[to] {
		return false
	}
	return from != StatusCancelled || to == StatusCancelled
}

// Validate checks the fields a caller must supply.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.PatientID) == "" {
		return invalid("patient_id is required")
	}
	if len(inv.Currency) != 3 {
		return invalid("invalid currency: %q", inv.Currency)
	}
	if inv.Status != "" && !validStatuses[inv.Status] {
		return invalid("invalid invoice status: %s", inv.Status)
	}
	for i, it := range inv.Items {
		if it.Quantity < 1 {
			return invalid("items[%d]: quantity must be at least 1", i)
		}
		if it.UnitPrice.Amount < 0 {
			return invalid("items[%d]: unit_price must not be negative", i)
		}
	}
	if inv.TaxAmount.Amount < 0 || inv.DiscountAmount.Amount < 0 {
		return invalid("tax_amount and discount_amount must not be negative")
	}
	if ins := inv.Insurance; ins != nil {
		if ins.CoveragePercentage < 0 || ins.CoveragePercentage > 100 {
			return invalid("coverage_percentage must be between 0 and 100")
		}
	}
	if !inv.DueDate.IsZero() && !inv.InvoiceDate.IsZero() && inv.DueDate.Before(inv.InvoiceDate) {
		return invalid("due_date is before invoice_date")
	}
	return nil
}

func (p *Payment) validate() error {
	if !p.Amount.IsPositive() {
		return invalid("payment amount must be positive")
	}
	if !validPaymentMethods[p.Method] {
		return invalid("invalid payment method: %q", p.Method)
	}
	if !validPaymentStatuses[p.Status] {
		return invalid("invalid payment status: %q", p.Status)
	}
	return nil
}

// Stats summarises a patient's invoices.
type Stats struct {
	PatientID        string `json:"patient_id"`
	InvoiceCount     int    `json:"invoice_count"`
	TotalBilled      Money  `json:"total_billed"`
	TotalPaid        Money  `json:"total_paid"`
	TotalOutstanding Money  `json:"total_outstanding"`
}
