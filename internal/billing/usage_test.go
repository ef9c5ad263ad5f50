package billing

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMeterAccumulatesByCategory(t *testing.T) {
	meter := NewMemoryMeter()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	meter.now = func() time.Time { return now }

	ctx := context.Background()
	if err := meter.Record(ctx, "user-1", "ai", "generate", Metrics{Requests: 1, Tokens: 500}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := meter.Record(ctx, "user-1", "ai", "generate", Metrics{Requests: 1, Tokens: 700}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := meter.Record(ctx, "user-1", "scraping", "scrape", Metrics{Requests: 1, ComputeUnits: 4}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rec, err := meter.Summary(ctx, "user-1", MonthOf(now))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if rec.Totals.Requests != 3 || rec.Totals.Tokens != 1200 || rec.Totals.ComputeUnits != 4 {
		t.Fatalf("totals: %+v", rec.Totals)
	}
	ai := rec.Categories["ai"]
	if ai.Metrics.Tokens != 1200 || ai.Operations["generate"] != 2 {
		t.Fatalf("ai category: %+v", ai)
	}
	if rec.Categories["scraping"].Metrics.ComputeUnits != 4 {
		t.Fatalf("scraping category: %+v", rec.Categories["scraping"])
	}
}

func TestMeterIsolatesIdentitiesAndPeriods(t *testing.T) {
	meter := NewMemoryMeter()
	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	ctx := context.Background()
	meter.now = func() time.Time { return march }
	if err := meter.Record(ctx, "user-1", "ai", "generate", Metrics{Requests: 5}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	meter.now = func() time.Time { return april }
	if err := meter.Record(ctx, "user-1", "ai", "generate", Metrics{Requests: 7}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	marchRec, _ := meter.Summary(ctx, "user-1", MonthOf(march))
	aprilRec, _ := meter.Summary(ctx, "user-1", MonthOf(april))
	if marchRec.Totals.Requests != 5 || aprilRec.Totals.Requests != 7 {
		t.Fatalf("period bleed: march=%d april=%d", marchRec.Totals.Requests, aprilRec.Totals.Requests)
	}

	other, _ := meter.Summary(ctx, "user-2", MonthOf(march))
	if other.Totals.Requests != 0 {
		t.Fatalf("cross-identity leak: %+v", other.Totals)
	}
}

func TestMeterConcurrentRecords(t *testing.T) {
	meter := NewMemoryMeter()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	meter.now = func() time.Time { return now }

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = meter.Record(context.Background(), "user-1", "ai", "generate", Metrics{Requests: 1, Tokens: 10})
		}()
	}
	wg.Wait()

	rec, err := meter.Summary(context.Background(), "user-1", MonthOf(now))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if rec.Totals.Requests != writers || rec.Totals.Tokens != writers*10 {
		t.Fatalf("lost updates: %+v", rec.Totals)
	}
}

func TestSummaryCopyDoesNotAliasStore(t *testing.T) {
	meter := NewMemoryMeter()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	meter.now = func() time.Time { return now }

	ctx := context.Background()
	if err := meter.Record(ctx, "user-1", "ai", "generate", Metrics{Requests: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec, _ := meter.Summary(ctx, "user-1", MonthOf(now))
	rec.Categories["ai"].Operations["generate"] = 99

	again, _ := meter.Summary(ctx, "user-1", MonthOf(now))
	if again.Categories["ai"].Operations["generate"] != 1 {
		t.Fatalf("summary aliases internal state")
	}
}

func TestPeriodKeyAndContains(t *testing.T) {
	p := MonthOf(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if p.Key() != "2026-03" {
		t.Fatalf("key: %s", p.Key())
	}
	if !p.Contains(time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end of march must be inside")
	}
	if p.Contains(p.End) {
		t.Fatalf("period end is exclusive")
	}
}
