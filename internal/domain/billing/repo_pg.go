package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invCols = `id, invoice_number, patient_id, doctor_id, appointment_id, currency,
	items, payments, insurance, tax_amount, discount_amount, status,
	invoice_date, due_date, notes, created_at, updated_at`

func (r *invoiceRepoPG) scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var tax, discount int64
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.DoctorID, &inv.AppointmentID,
		&inv.Currency, &inv.Items, &inv.Payments, &inv.Insurance, &tax, &discount, &inv.Status,
		&inv.InvoiceDate, &inv.DueDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Currency = strings.TrimSpace(inv.Currency)
	inv.TaxAmount = Money{Amount: tax, Currency: inv.Currency}
	inv.DiscountAmount = Money{Amount: discount, Currency: inv.Currency}
	if err := inv.Compute(); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	return &inv, nil
}

func (r *invoiceRepoPG) scanAll(rows pgx.Rows) ([]*Invoice, error) {
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := r.scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO invoice (id, invoice_number, patient_id, doctor_id, appointment_id, currency,
			items, payments, insurance, tax_amount, discount_amount, status,
			invoice_date, due_date, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.DoctorID, inv.AppointmentID, inv.Currency,
		nonNilItems(inv.Items), nonNilPayments(inv.Payments), inv.Insurance,
		inv.TaxAmount.Amount, inv.DiscountAmount.Amount, inv.Status,
		inv.InvoiceDate, inv.DueDate, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return r.scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invCols+` FROM invoice WHERE id = $1`, id))
}

func (r *invoiceRepoPG) Update(ctx context.Context, inv *Invoice) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE invoice SET invoice_number=$2, patient_id=$3, doctor_id=$4, appointment_id=$5,
			currency=$6, items=$7, payments=$8, insurance=$9, tax_amount=$10,
			discount_amount=$11, status=$12, invoice_date=$13, due_date=$14, notes=$15,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.DoctorID, inv.AppointmentID,
		inv.Currency, nonNilItems(inv.Items), nonNilPayments(inv.Payments), inv.Insurance,
		inv.TaxAmount.Amount, inv.DiscountAmount.Amount, inv.Status,
		inv.InvoiceDate, inv.DueDate, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *invoiceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoice WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *invoiceRepoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	where, args := []string{"TRUE"}, []interface{}{}
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("patient_id", f.PatientID)
	add("doctor_id", f.DoctorID)
	add("status", f.Status)
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoice WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT `+invCols+` FROM invoice WHERE %s
		ORDER BY invoice_date DESC, invoice_number DESC LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.scanAll(rows)
	return items, total, err
}

func (r *invoiceRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invCols+` FROM invoice WHERE patient_id = $1
		ORDER BY invoice_date, invoice_number`, patientID)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *invoiceRepoPG) ListDue(ctx context.Context, before time.Time) ([]*Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invCols+` FROM invoice
		WHERE status IN ($1, $2) AND due_date < $3
		ORDER BY due_date`, StatusSent, StatusPartiallyPaid, before)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *invoiceRepoPG) NextSequence(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT nextval('invoice_number_seq')`).Scan(&n)
	return n, err
}

func nonNilItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}

func nonNilPayments(p []Payment) []Payment {
	if p == nil {
		return []Payment{}
	}
	return p
}
