package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"metergate.org/internal/audit"
	"metergate.org/internal/auth"
	"metergate.org/internal/directory"
	"metergate.org/internal/ids"
	"metergate.org/internal/obs"
)

// ErrInvoiceNotFound is returned for invoice ids the calculator has never
// issued.
var ErrInvoiceNotFound = errors.New("billing: invoice not found")

// InvoiceStatus is the invoice lifecycle state.
type InvoiceStatus string

const (
	StatusDraft InvoiceStatus = "draft"
	StatusFinal InvoiceStatus = "final"
)

// Line item types on an invoice.
const (
	ItemBaseFee = "base_fee"
	ItemUsage   = "usage"
)

// LineItem is one independently priced and rounded charge.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
}

// PaymentInfo is attached to a final invoice when payment is recorded.
type PaymentInfo struct {
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paid_at"`
}

// Invoice is a billing document derived from one identity's usage over one
// period. Once final it never changes, except that payment metadata may be
// attached.
type Invoice struct {
	ID            string        `json:"invoice_id"`
	UserID        string        `json:"user_id"`
	CustomerName  string        `json:"customer_name,omitempty"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	InvoiceDate   time.Time     `json:"invoice_date"`
	DueDate       time.Time     `json:"due_date"`
	BillingPeriod Period        `json:"billing_period"`
	LineItems     []LineItem    `json:"line_items"`
	Subtotal      float64       `json:"subtotal"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency"`
	Status        InvoiceStatus `json:"status"`
	Payment       *PaymentInfo  `json:"payment,omitempty"`
}

// BatchResult reports a batch invoicing run. Per-identity failures are
// isolated; they never abort sibling work.
type BatchResult struct {
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	Invoices     []Invoice `json:"invoices"`
}

const (
	invoiceCurrency = "USD"
	paymentTerm     = 30 * 24 * time.Hour
)

// Calculator turns accumulated usage into invoices. It is constructed once at
// startup; the invoice store lives for the process lifetime.
type Calculator struct {
	meter   Meter
	pricing PricingTable
	users   directory.Directory
	emitter audit.Emitter
	now     func() time.Time

	mu       sync.Mutex
	invoices map[string]*Invoice
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithCalculatorClock overrides the time source (useful for tests).
func WithCalculatorClock(fn func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithCalculatorAuditEmitter sets the audit sink for invoice lifecycle events.
func WithCalculatorAuditEmitter(e audit.Emitter) CalculatorOption {
	return func(c *Calculator) {
		if e != nil {
			c.emitter = e
		}
	}
}

func NewCalculator(meter Meter, pricing PricingTable, users directory.Directory, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		meter:    meter,
		pricing:  pricing,
		users:    users,
		emitter:  audit.NopEmitter{},
		now:      time.Now,
		invoices: make(map[string]*Invoice),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateInvoice prices the identity's usage for the period at the tier's
// rates and stores a draft invoice. Each of the five cost terms is rounded to
// 2 decimals as its own line item before summing.
func (c *Calculator) GenerateInvoice(ctx context.Context, identity string, period Period, tier auth.Tier) (Invoice, error) {
	user, err := c.users.Find(ctx, identity)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: look up %s: %w", identity, err)
	}
	usage, err := c.meter.Summary(ctx, identity, period)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: summarize usage for %s: %w", identity, err)
	}

	rates := c.pricing.PricingFor(tier)
	now := c.now().UTC()

	items := []LineItem{
		{Description: fmt.Sprintf("%s tier base fee", tier), Amount: round2(rates.BaseFee), Type: ItemBaseFee},
		{Description: fmt.Sprintf("%d requests", usage.Totals.Requests), Amount: round2(float64(usage.Totals.Requests) * rates.RequestRate), Type: ItemUsage},
		{Description: fmt.Sprintf("%d compute units", usage.Totals.ComputeUnits), Amount: round2(float64(usage.Totals.ComputeUnits) * rates.ComputeUnitRate), Type: ItemUsage},
		{Description: fmt.Sprintf("%d tokens", usage.Totals.Tokens), Amount: round2(float64(usage.Totals.Tokens) * rates.TokenRate), Type: ItemUsage},
		{Description: fmt.Sprintf("%d bytes stored", usage.Totals.StorageBytes), Amount: round2(float64(usage.Totals.StorageBytes) / bytesPerGB * rates.StorageRate), Type: ItemUsage},
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.Amount
	}
	subtotal = round2(subtotal)

	inv := &Invoice{
		ID:            ids.New(),
		UserID:        identity,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		InvoiceDate:   now,
		DueDate:       now.Add(paymentTerm),
		BillingPeriod: period,
		LineItems:     items,
		Subtotal:      subtotal,
		Total:         subtotal,
		Currency:      invoiceCurrency,
		Status:        StatusDraft,
	}

	c.mu.Lock()
	c.invoices[inv.ID] = inv
	c.mu.Unlock()

	c.emitter.Emit(ctx, audit.Event{
		EventType: "invoice_generated",
		ActorID:   identity,
		Resource:  "invoice:" + inv.ID,
		Action:    "generate",
		Outcome:   audit.OutcomeSuccess,
		Severity:  audit.SeverityInfo,
		Details:   map[string]any{"period": period.Key(), "total": inv.Total},
	})

	return *inv, nil
}

// GetInvoice returns a stored invoice by id.
func (c *Calculator) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inv, ok := c.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *inv, nil
}

// FinalizeInvoice marks a draft invoice final, optionally attaching payment
// metadata. Finalizing an already-final invoice returns it unchanged, so the
// operation is idempotent; payment metadata is attached at most once.
func (c *Calculator) FinalizeInvoice(ctx context.Context, id string, payment *PaymentInfo) (Invoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inv, ok := c.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	if inv.Status == StatusFinal {
		if inv.Payment == nil && payment != nil {
			p := *payment
			inv.Payment = &p
		}
		return *inv, nil
	}

	inv.Status = StatusFinal
	if payment != nil {
		p := *payment
		inv.Payment = &p
	}

	c.emitter.Emit(ctx, audit.Event{
		EventType: "invoice_finalized",
		ActorID:   inv.UserID,
		Resource:  "invoice:" + inv.ID,
		Action:    "finalize",
		Outcome:   audit.OutcomeSuccess,
		Severity:  audit.SeverityInfo,
		Details:   map[string]any{"total": inv.Total},
	})

	return *inv, nil
}

// GenerateBatch invoices each identity for the period at the tier recorded in
// the directory. A failing identity is logged and counted, never aborting the
// rest of the batch.
func (c *Calculator) GenerateBatch(ctx context.Context, identities []string, period Period) BatchResult {
	result := BatchResult{Invoices: make([]Invoice, 0, len(identities))}
	for _, identity := range identities {
		inv, err := c.invoiceOne(ctx, identity, period)
		if err != nil {
			result.FailedCount++
			obs.LogEntry(map[string]any{
				"level":    "warn",
				"msg":      "batch invoice failed",
				"identity": identity,
				"error":    err.Error(),
			})
			continue
		}
		result.SuccessCount++
		result.Invoices = append(result.Invoices, inv)
	}
	return result
}

func (c *Calculator) invoiceOne(ctx context.Context, identity string, period Period) (Invoice, error) {
	user, err := c.users.Find(ctx, identity)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: look up %s: %w", identity, err)
	}
	return c.GenerateInvoice(ctx, identity, period, user.Tier)
}
