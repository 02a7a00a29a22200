package billing

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockInvoiceRepo struct {
	items     map[uuid.UUID]*Invoice
	seq       int64
	updateErr error
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{items: make(map[uuid.UUID]*Invoice)}
}

// clone mimics a database round trip so callers never share state.
func clone(inv *Invoice) *Invoice {
	cp := *inv
	cp.Items = append([]Item(nil), inv.Items...)
	cp.Payments = append([]Payment(nil), inv.Payments...)
	cp.Compute()
	return &cp
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	m.items[inv.ID] = clone(inv)
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(inv), nil
}

func (m *mockInvoiceRepo) Update(_ context.Context, inv *Invoice) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.items[inv.ID]; !ok {
		return ErrNotFound
	}
	inv.UpdatedAt = time.Now()
	m.items[inv.ID] = clone(inv)
	return nil
}

func (m *mockInvoiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockInvoiceRepo) sorted() []*Invoice {
	var out []*Invoice
	for _, inv := range m.items {
		out = append(out, clone(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber < out[j].InvoiceNumber })
	return out
}

func (m *mockInvoiceRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Invoice, int, error) {
	var result []*Invoice
	for _, inv := range m.sorted() {
		if (f.PatientID == "" || inv.PatientID == f.PatientID) &&
			(f.DoctorID == "" || inv.DoctorID == f.DoctorID) &&
			(f.Status == "" || inv.Status == f.Status) {
			result = append(result, inv)
		}
	}
	total := len(result)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return result[offset:end], total, nil
}

func (m *mockInvoiceRepo) ListByPatient(_ context.Context, patientID string) ([]*Invoice, error) {
	var result []*Invoice
	for _, inv := range m.sorted() {
		if inv.PatientID == patientID {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (m *mockInvoiceRepo) ListDue(_ context.Context, before time.Time) ([]*Invoice, error) {
	var result []*Invoice
	for _, inv := range m.sorted() {
		if (inv.Status == StatusSent || inv.Status == StatusPartiallyPaid) && inv.DueDate.Before(before) {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (m *mockInvoiceRepo) NextSequence(context.Context) (int64, error) {
	m.seq++
	return m.seq, nil
}

var testNow = time.Date(2025, 5, 15, 9, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockInvoiceRepo) {
	repo := newMockInvoiceRepo()
	svc := NewService(repo, zerolog.Nop())
	svc.SetClock(func() time.Time { return testNow })
	return svc, repo
}

func createSample(t *testing.T, svc *Service, mutate func(inv *Invoice)) *Invoice {
	t.Helper()
	inv := sampleInvoice()
	if mutate != nil {
		mutate(inv)
	}
	if err := svc.CreateInvoice(context.Background(), inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestService_CreateInvoice_Defaults(t *testing.T) {
	svc, _ := newTestService()
	inv := createSample(t, svc, nil)

	if inv.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if inv.Status != StatusDraft {
		t.Errorf("expected DRAFT, got %s", inv.Status)
	}
	if inv.InvoiceNumber != "INV-2025-000001" {
		t.Errorf("unexpected invoice number %q", inv.InvoiceNumber)
	}
	wantIssue := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)
	if !inv.InvoiceDate.Equal(wantIssue) {
		t.Errorf("expected invoice date %v, got %v", wantIssue, inv.InvoiceDate)
	}
	if !inv.DueDate.Equal(wantIssue.AddDate(0, 0, DefaultPaymentTermDays)) {
		t.Errorf("unexpected due date %v", inv.DueDate)
	}
	if inv.Totals.Total.Amount != 20500 {
		t.Errorf("expected totals to be computed, got %+v", inv.Totals)
	}
}

func TestService_CreateInvoice_KeepsGivenNumber(t *testing.T) {
	svc, repo := newTestService()
	inv := createSample(t, svc, func(inv *Invoice) { inv.InvoiceNumber = "LEGACY-7" })
	if inv.InvoiceNumber != "LEGACY-7" {
		t.Errorf("expected given number, got %q", inv.InvoiceNumber)
	}
	if repo.seq != 0 {
		t.Error("sequence should not be consumed when a number is given")
	}
}

func TestService_CreateInvoice_Invalid(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CreateInvoice(context.Background(), &Invoice{})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestService_AddPayment(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := createSample(t, svc, func(inv *Invoice) { inv.Status = StatusSent })

	got, err := svc.AddPayment(ctx, inv.ID, Payment{Amount: usd(5000), Method: "CASH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusPartiallyPaid {
		t.Errorf("expected PARTIALLY_PAID, got %s", got.Status)
	}
	p := got.Payments[0]
	if p.ID == "" || p.TransactionID == "" || !p.Date.Equal(testNow) || p.Status != PaymentCompleted {
		t.Errorf("payment defaults not applied: %+v", p)
	}

	got, err = svc.AddPayment(ctx, inv.ID, Payment{Amount: usd(15500), Method: "CREDIT_CARD", TransactionID: "tx-9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusPaid {
		t.Errorf("expected PAID, got %s", got.Status)
	}
	if got.Payments[1].TransactionID != "tx-9" {
		t.Errorf("expected given transaction id, got %q", got.Payments[1].TransactionID)
	}

	stored, _ := svc.GetInvoice(ctx, inv.ID)
	if !stored.Totals.Outstanding.IsZero() || len(stored.Payments) != 2 {
		t.Errorf("payments not persisted: %+v", stored.Totals)
	}
}

func TestService_AddPayment_Rejections(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := createSample(t, svc, nil)
	cancelled := createSample(t, svc, func(inv *Invoice) { inv.Status = StatusCancelled })

	tests := []struct {
		name    string
		id      uuid.UUID
		p       Payment
		wantErr error
	}{
		{"unknown invoice", uuid.New(), Payment{Amount: usd(1), Method: "CASH"}, ErrNotFound},
		{"cancelled invoice", cancelled.ID, Payment{Amount: usd(1), Method: "CASH"}, ErrInvalidTransition},
		{"other currency", inv.ID, Payment{Amount: Money{Amount: 1, Currency: "EUR"}, Method: "CASH"}, ErrCurrencyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.AddPayment(ctx, tt.id, tt.p); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	for _, p := range []Payment{
		{Amount: usd(0), Method: "CASH"},
		{Amount: usd(100), Method: "BARTER"},
		{Amount: usd(100), Method: "CASH", Status: "MAYBE"},
	} {
		var ve *ValidationError
		if _, err := svc.AddPayment(ctx, inv.ID, p); !errors.As(err, &ve) {
			t.Errorf("payment %+v: expected ValidationError, got %v", p, err)
		}
	}
}

func TestService_UpdateInvoice(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := createSample(t, svc, nil)
	svc.AddPayment(ctx, inv.ID, Payment{Amount: usd(100), Method: "CASH"})

	upd := &Invoice{
		ID:        inv.ID,
		PatientID: inv.PatientID,
		Items:     []Item{{Description: "Follow-up", Quantity: 1, UnitPrice: usd(4000)}},
	}
	if err := svc.UpdateInvoice(ctx, upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.InvoiceNumber != inv.InvoiceNumber {
		t.Errorf("number should be kept, got %q", upd.InvoiceNumber)
	}
	if len(upd.Payments) != 1 {
		t.Errorf("payments should be kept when omitted, got %d", len(upd.Payments))
	}
	if upd.Totals.Outstanding.Amount != 3900 {
		t.Errorf("expected outstanding 3900, got %d", upd.Totals.Outstanding.Amount)
	}
}

func TestService_UpdateInvoice_CancelledIsFinal(t *testing.T) {
	svc, _ := newTestService()
	inv := createSample(t, svc, func(inv *Invoice) { inv.Status = StatusCancelled })
	upd := sampleInvoice()
	upd.ID = inv.ID
	upd.Status = StatusSent
	if err := svc.UpdateInvoice(context.Background(), upd); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	inv := createSample(t, svc, nil)

	got, err := svc.UpdateStatus(ctx, inv.ID, StatusSent)
	if err != nil || got.Status != StatusSent {
		t.Fatalf("expected SENT, got %v (%v)", got, err)
	}
	var ve *ValidationError
	if _, err := svc.UpdateStatus(ctx, inv.ID, "LOST"); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, inv.ID, StatusCancelled); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateStatus(ctx, inv.ID, StatusDraft); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_MarkOverdue(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	past := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	overdue := createSample(t, svc, func(inv *Invoice) {
		inv.Status = StatusSent
		inv.InvoiceDate = past.AddDate(0, -1, 0)
		inv.DueDate = past
	})
	createSample(t, svc, func(inv *Invoice) { inv.Status = StatusSent }) // due in 30 days
	createSample(t, svc, func(inv *Invoice) {
		inv.Status = StatusDraft
		inv.InvoiceDate = past.AddDate(0, -1, 0)
		inv.DueDate = past
	})

	n, err := svc.MarkOverdue(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 invoice marked, got %d", n)
	}
	if got, _ := repo.GetByID(ctx, overdue.ID); got.Status != StatusOverdue {
		t.Errorf("expected OVERDUE, got %s", got.Status)
	}

	n, _ = svc.MarkOverdue(ctx)
	if n != 0 {
		t.Errorf("second run should be a no-op, marked %d", n)
	}
}

func TestService_MarkOverdue_UpdateError(t *testing.T) {
	svc, repo := newTestService()
	past := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	createSample(t, svc, func(inv *Invoice) {
		inv.Status = StatusSent
		inv.InvoiceDate = past
		inv.DueDate = past
	})
	repo.updateErr = errors.New("db down")

	n, err := svc.MarkOverdue(context.Background())
	if err == nil || n != 0 {
		t.Errorf("expected error and no updates, got %d, %v", n, err)
	}
}

func TestService_Stats(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	empty, err := svc.Stats(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if empty.TotalBilled != Zero("USD") || empty.InvoiceCount != 0 {
		t.Errorf("expected zero USD stats, got %+v", empty)
	}

	a := createSample(t, svc, func(inv *Invoice) { inv.Status = StatusSent })
	createSample(t, svc, nil)
	createSample(t, svc, func(inv *Invoice) { inv.Status = StatusCancelled })
	createSample(t, svc, func(inv *Invoice) { inv.PatientID = "p-2" })
	svc.AddPayment(ctx, a.ID, Payment{Amount: usd(500), Method: "CASH"})

	st, err := svc.Stats(ctx, "p-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.InvoiceCount != 3 {
		t.Errorf("expected 3 invoices, got %d", st.InvoiceCount)
	}
	if st.TotalBilled.Amount != 41000 {
		t.Errorf("expected billed 41000 excluding cancelled, got %d", st.TotalBilled.Amount)
	}
	if st.TotalPaid.Amount != 500 || st.TotalOutstanding.Amount != 40500 {
		t.Errorf("unexpected paid/outstanding: %+v", st)
	}
}

type notification struct {
	topic, kind, id string
	hasPayload      bool
}

type recordingNotifier struct{ got []notification }

func (r *recordingNotifier) Notify(_ context.Context, topic, kind, id string, payload any) {
	r.got = append(r.got, notification{topic, kind, id, payload != nil})
}

func TestService_Notifications(t *testing.T) {
	svc, _ := newTestService()
	rec := &recordingNotifier{}
	svc.SetNotifier(rec)
	ctx := context.Background()

	inv := createSample(t, svc, func(inv *Invoice) { inv.Status = StatusSent })
	if _, err := svc.AddPayment(ctx, inv.ID, Payment{Amount: usd(100), Method: "CASH"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteInvoice(ctx, inv.ID); err != nil {
		t.Fatal(err)
	}

	want := []string{KindInvoiceCreated, KindPaymentAdded, KindInvoiceDeleted}
	if len(rec.got) != len(want) {
		t.Fatalf("expected %d notifications, got %+v", len(want), rec.got)
	}
	for i, n := range rec.got {
		if n.kind != want[i] || n.topic != Topic(inv.PatientID) || n.id != inv.ID.String() {
			t.Errorf("notification %d: unexpected %+v", i, n)
		}
	}
	if rec.got[2].hasPayload {
		t.Error("deletions carry no payload")
	}
}
