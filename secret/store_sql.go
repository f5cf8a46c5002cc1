package secret

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"
)

// SQLStore implements [Store] on a relational settings table:
//
//	create table settings (
//	    key        text primary key,
//	    value      text not null,
//	    updated_at timestamptz not null default now()
//	)
//
// Secrets are stored base64-encoded. Open the database with the pgx
// stdlib driver: sql.Open("pgx", dsn).
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore returns an [SQLStore] over db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Get(ctx context.Context) ([]byte, time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`select value, updated_at from settings where key = $1`, SettingsKey)

	var (
		encoded   string
		updatedAt time.Time
	)
	if err := row.Scan(&encoded, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("corrupt settings row: %v", err)
	}
	return value, updatedAt, nil
}

// PutIfAbsent relies on the primary key for atomicity: concurrent first
// writers race on the insert and exactly one row wins.
func (s *SQLStore) PutIfAbsent(ctx context.Context, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`insert into settings (key, value, updated_at) values ($1, $2, now())
		 on conflict (key) do nothing`,
		SettingsKey, base64.StdEncoding.EncodeToString(value))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SQLStore) Replace(ctx context.Context, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`insert into settings (key, value, updated_at) values ($1, $2, now())
		 on conflict (key) do update set value = excluded.value, updated_at = now()`,
		SettingsKey, base64.StdEncoding.EncodeToString(value))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
