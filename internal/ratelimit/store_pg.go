package ratelimit

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore implements CounterStore against Postgres so multiple instances can
// share one counter table without changing the admission algorithm. The
// upsert makes concurrent increments atomic.
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open database handle. The handle may be shared with
// other components and is not closed by the store.
func NewPGStore(db *sql.DB) (*PGStore, error) {
	if db == nil {
		return nil, errors.New("ratelimit: database handle is required")
	}
	return &PGStore{db: db}, nil
}

// EnsureSchema creates the counter table when it does not exist.
func (s *PGStore) EnsureSchema() error {
	_, err := s.db.Exec(`
		create table if not exists rate_counters (
			identity     text   not null,
			endpoint     text   not null,
			window_kind  text   not null,
			window_index bigint not null,
			count        bigint not null default 0,
			primary key (identity, endpoint, window_kind, window_index)
		)`)
	if err != nil {
		return fmt.Errorf("ratelimit: create rate_counters: %w", err)
	}
	return nil
}

func (s *PGStore) Incr(key Key) (int64, error) {
	var count int64
	err := s.db.QueryRow(`
		insert into rate_counters(identity, endpoint, window_kind, window_index, count)
		values ($1, $2, $3, $4, 1)
		on conflict (identity, endpoint, window_kind, window_index)
		do update set count = rate_counters.count + 1
		returning count
	`, key.Identity, key.Endpoint, string(key.Window), key.Index).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: increment counter: %w", err)
	}
	return count, nil
}

func (s *PGStore) Sweep(now time.Time) (int, error) {
	removed := 0
	for _, w := range Windows {
		res, err := s.db.Exec(`
			delete from rate_counters
			where window_kind = $1 and window_index < $2
		`, string(w), w.IndexAt(now))
		if err != nil {
			return removed, fmt.Errorf("ratelimit: sweep %s counters: %w", w, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += int(n)
		}
	}
	return removed, nil
}
