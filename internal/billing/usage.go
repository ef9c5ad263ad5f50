package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"metergate.org/internal/obs"
)

// Metrics is the billable consumption of one completed operation.
type Metrics struct {
	Requests     int64 `json:"requests"`
	ComputeUnits int64 `json:"compute_units"`
	Tokens       int64 `json:"tokens"`
	StorageBytes int64 `json:"storage_bytes"`
}

func (m Metrics) add(other Metrics) Metrics {
	m.Requests += other.Requests
	m.ComputeUnits += other.ComputeUnits
	m.Tokens += other.Tokens
	m.StorageBytes += other.StorageBytes
	return m
}

// Period is a billing period, closed at the start and open at the end.
type Period struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// MonthOf returns the calendar-month period containing t, in UTC.
func MonthOf(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Key buckets the period for accumulation. Usage is accumulated per calendar
// month of the period start.
func (p Period) Key() string { return p.Start.UTC().Format("2006-01") }

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// CategoryUsage is accumulated consumption within one category, with the
// operations that produced it.
type CategoryUsage struct {
	Metrics    Metrics          `json:"metrics"`
	Operations map[string]int64 `json:"operations"`
}

// UsageRecord is the accumulated consumption of one identity over one period.
type UsageRecord struct {
	Identity   string                   `json:"identity"`
	Period     Period                   `json:"billing_period"`
	Totals     Metrics                  `json:"totals"`
	Categories map[string]CategoryUsage `json:"categories"`
}

// Meter accumulates billable consumption. Record is additive and does not
// deduplicate: callers must record each billable event exactly once, and only
// after the gated operation completed successfully.
type Meter interface {
	Record(ctx context.Context, identity, category, operation string, m Metrics) error
	Summary(ctx context.Context, identity string, period Period) (UsageRecord, error)
}

// MemoryMeter keeps usage in process memory. It is initialized once at
// startup and shared for the process lifetime; usage is lost on restart
// unless a durable Meter is substituted.
type MemoryMeter struct {
	mu      sync.Mutex
	records map[string]*UsageRecord // identity + period key
	now     func() time.Time
}

func NewMemoryMeter() *MemoryMeter {
	return &MemoryMeter{records: make(map[string]*UsageRecord), now: time.Now}
}

func (m *MemoryMeter) Record(ctx context.Context, identity, category, operation string, metrics Metrics) error {
	if identity == "" {
		return fmt.Errorf("billing: identity is required")
	}
	if category == "" {
		category = "general"
	}
	period := MonthOf(m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	key := identity + "/" + period.Key()
	rec, ok := m.records[key]
	if !ok {
		rec = &UsageRecord{
			Identity:   identity,
			Period:     period,
			Categories: make(map[string]CategoryUsage),
		}
		m.records[key] = rec
	}

	rec.Totals = rec.Totals.add(metrics)
	cu := rec.Categories[category]
	if cu.Operations == nil {
		cu.Operations = make(map[string]int64)
	}
	cu.Metrics = cu.Metrics.add(metrics)
	if operation != "" {
		cu.Operations[operation]++
	}
	rec.Categories[category] = cu

	obs.UsageRecorded(category)
	return nil
}

// Summary returns a copy of the identity's usage for the period. An identity
// with no recorded usage yields an empty record, not an error.
func (m *MemoryMeter) Summary(ctx context.Context, identity string, period Period) (UsageRecord, error) {
	if identity == "" {
		return UsageRecord{}, fmt.Errorf("billing: identity is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[identity+"/"+period.Key()]
	if !ok {
		return UsageRecord{
			Identity:   identity,
			Period:     period,
			Categories: map[string]CategoryUsage{},
		}, nil
	}

	out := UsageRecord{
		Identity:   rec.Identity,
		Period:     rec.Period,
		Totals:     rec.Totals,
		Categories: make(map[string]CategoryUsage, len(rec.Categories)),
	}
	for name, cu := range rec.Categories {
		ops := make(map[string]int64, len(cu.Operations))
		for op, n := range cu.Operations {
			ops[op] = n
		}
		out.Categories[name] = CategoryUsage{Metrics: cu.Metrics, Operations: ops}
	}
	return out, nil
}
