package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"metergate.org/internal/auth"
	"metergate.org/internal/directory"
)

// Store serves directory lookups from Postgres.
type Store struct {
	db *sql.DB
}

var _ directory.Directory = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle, for sharing one pool across stores.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Find(ctx context.Context, id string) (directory.User, error) {
	var u directory.User
	var role, tier, status string
	err := s.db.QueryRowContext(ctx, `
		select id, email, name, role, tier, status
		from users where id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &role, &tier, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	u.Role = auth.NormalizeRole(role)
	u.Tier = auth.NormalizeTier(tier)
	u.Status = directory.Status(status)
	return u, nil
}
