package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS revoked_sessions (
	id         TEXT PRIMARY KEY,
	until_unix INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revoked_sessions_until ON revoked_sessions(until_unix);
`

// SQLiteStore persists revocations in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (and creates if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Revoke(ctx context.Context, id string, until time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_sessions (id, until_unix) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET until_unix = excluded.until_unix`,
		id, until.Unix())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	var until int64
	err := s.db.QueryRowContext(ctx, `SELECT until_unix FROM revoked_sessions WHERE id = ?`, id).Scan(&until)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked session: %w", err)
	}
	return until > s.now().Unix(), nil
}

func (s *SQLiteStore) Prune(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM revoked_sessions WHERE until_unix <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune revoked sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
