package ratelimit

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreIncrReturnsUpsertedCount(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 10, 30, 15, 0, time.UTC)
	key := KeyAt("user-1", "/v1/ai/generate", WindowMinute, now)

	mock.ExpectQuery(`insert into rate_counters`).
		WithArgs(key.Identity, key.Endpoint, string(key.Window), key.Index).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	store, err := NewPGStore(db)
	if err != nil {
		t.Fatalf("NewPGStore: %v", err)
	}
	count, err := store.Incr(key)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if count != 7 {
		t.Fatalf("count: got %d, want 7", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreSweepDeletesPerWindow(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 10, 30, 15, 0, time.UTC)
	for i, w := range Windows {
		mock.ExpectExec(`delete from rate_counters`).
			WithArgs(string(w), w.IndexAt(now)).
			WillReturnResult(sqlmock.NewResult(0, int64(i+1)))
	}

	store, err := NewPGStore(db)
	if err != nil {
		t.Fatalf("NewPGStore: %v", err)
	}
	removed, err := store.Sweep(now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 6 {
		t.Fatalf("removed: got %d, want 6", removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewPGStoreRequiresHandle(t *testing.T) {
	if _, err := NewPGStore(nil); err == nil {
		t.Fatalf("nil handle must be rejected")
	}
}
