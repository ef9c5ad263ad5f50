package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"metergate.org/internal/auth"
	"metergate.org/internal/directory"
)

var billingNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestCalculator(t *testing.T, meter Meter) (*Calculator, Period) {
	t.Helper()
	users := directory.NewMemory(
		directory.User{ID: "user-1", Email: "one@example.com", Name: "User One", Role: auth.RoleUser, Tier: auth.TierBasic, Status: directory.StatusActive},
		directory.User{ID: "user-2", Email: "two@example.com", Name: "User Two", Role: auth.RoleUser, Tier: auth.TierPro, Status: directory.StatusActive},
	)
	calc := NewCalculator(meter, DefaultPricing, users,
		WithCalculatorClock(func() time.Time { return billingNow }))
	return calc, MonthOf(billingNow)
}

func recordRequests(t *testing.T, meter *MemoryMeter, identity string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := meter.Record(context.Background(), identity, "ai", "generate", Metrics{Requests: 1}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
}

func TestGenerateInvoiceRoundsEachLineItemBeforeSumming(t *testing.T) {
	meter := NewMemoryMeter()
	meter.now = func() time.Time { return billingNow }
	recordRequests(t, meter, "user-1", 3)

	calc, period := newTestCalculator(t, meter)
	inv, err := calc.GenerateInvoice(context.Background(), "user-1", period, auth.TierBasic)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	// 3 requests at 0.001 is 0.003, which rounds to 0.00 as its own line
	// item. Summing first and rounding once would keep the fraction.
	if len(inv.LineItems) != 5 {
		t.Fatalf("expected 5 line items, got %d", len(inv.LineItems))
	}
	if inv.LineItems[0].Type != ItemBaseFee || inv.LineItems[0].Amount != 9.99 {
		t.Fatalf("base fee line: %+v", inv.LineItems[0])
	}
	if inv.LineItems[1].Amount != 0.00 {
		t.Fatalf("request line must round to zero: %+v", inv.LineItems[1])
	}
	if inv.Total != 9.99 {
		t.Fatalf("total: got %v, want 9.99", inv.Total)
	}
	if inv.Subtotal != inv.Total {
		t.Fatalf("subtotal %v != total %v", inv.Subtotal, inv.Total)
	}
	if inv.Status != StatusDraft {
		t.Fatalf("fresh invoice must be draft, got %s", inv.Status)
	}
	if inv.Currency != "USD" {
		t.Fatalf("currency: %s", inv.Currency)
	}
	if !inv.DueDate.After(inv.InvoiceDate) {
		t.Fatalf("due date %v not after invoice date %v", inv.DueDate, inv.InvoiceDate)
	}
}

func TestGenerateInvoiceUnknownTierBilledAsBasic(t *testing.T) {
	meter := NewMemoryMeter()
	meter.now = func() time.Time { return billingNow }
	calc, period := newTestCalculator(t, meter)

	inv, err := calc.GenerateInvoice(context.Background(), "user-1", period, auth.Tier("bogus"))
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}
	if inv.LineItems[0].Amount != DefaultPricing[auth.TierBasic].BaseFee {
		t.Fatalf("unknown tier must fall back to basic pricing: %+v", inv.LineItems[0])
	}
}

func TestFinalizeInvoiceIdempotent(t *testing.T) {
	meter := NewMemoryMeter()
	meter.now = func() time.Time { return billingNow }
	calc, period := newTestCalculator(t, meter)

	inv, err := calc.GenerateInvoice(context.Background(), "user-1", period, auth.TierBasic)
	if err != nil {
		t.Fatalf("GenerateInvoice: %v", err)
	}

	payment := &PaymentInfo{Method: "card", Reference: "ch_123", PaidAt: billingNow}
	first, err := calc.FinalizeInvoice(context.Background(), inv.ID, payment)
	if err != nil {
		t.Fatalf("FinalizeInvoice: %v", err)
	}
	if first.Status != StatusFinal {
		t.Fatalf("status after finalize: %s", first.Status)
	}
	if first.Payment == nil || first.Payment.Reference != "ch_123" {
		t.Fatalf("payment metadata not attached: %+v", first.Payment)
	}

	second, err := calc.FinalizeInvoice(context.Background(), inv.ID, &PaymentInfo{Method: "card", Reference: "ch_456"})
	if err != nil {
		t.Fatalf("second FinalizeInvoice: %v", err)
	}
	if second.Status != StatusFinal || second.Total != first.Total {
		t.Fatalf("second finalize changed the invoice: %+v", second)
	}
	if second.Payment.Reference != "ch_123" {
		t.Fatalf("payment metadata must not be replaced: %+v", second.Payment)
	}

	stored, err := calc.GetInvoice(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if stored.Status != StatusFinal {
		t.Fatalf("stored invoice not final: %s", stored.Status)
	}
}

func TestFinalizeUnknownInvoice(t *testing.T) {
	meter := NewMemoryMeter()
	calc, _ := newTestCalculator(t, meter)

	if _, err := calc.FinalizeInvoice(context.Background(), "missing", nil); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
	if _, err := calc.GetInvoice(context.Background(), "missing"); !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestGenerateBatchIsolatesFailures(t *testing.T) {
	meter := &flakyMeter{inner: NewMemoryMeter(), failFor: "user-2"}
	meter.inner.now = func() time.Time { return billingNow }
	calc, period := newTestCalculator(t, meter)

	result := calc.GenerateBatch(context.Background(), []string{"user-1", "user-2"}, period)
	if result.SuccessCount != 1 || result.FailedCount != 1 {
		t.Fatalf("batch counts: %+v", result)
	}
	if len(result.Invoices) != 1 || result.Invoices[0].UserID != "user-1" {
		t.Fatalf("batch must contain only the successful invoice: %+v", result.Invoices)
	}
}

func TestGenerateBatchUnknownIdentity(t *testing.T) {
	meter := NewMemoryMeter()
	meter.now = func() time.Time { return billingNow }
	calc, period := newTestCalculator(t, meter)

	result := calc.GenerateBatch(context.Background(), []string{"user-1", "ghost"}, period)
	if result.SuccessCount != 1 || result.FailedCount != 1 {
		t.Fatalf("batch counts: %+v", result)
	}
}

type flakyMeter struct {
	inner   *MemoryMeter
	failFor string
}

func (f *flakyMeter) Record(ctx context.Context, identity, category, operation string, m Metrics) error {
	return f.inner.Record(ctx, identity, category, operation, m)
}

func (f *flakyMeter) Summary(ctx context.Context, identity string, period Period) (UsageRecord, error) {
	if identity == f.failFor {
		return UsageRecord{}, errors.New("usage backend unavailable")
	}
	return f.inner.Summary(ctx, identity, period)
}
