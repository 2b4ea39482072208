package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    token TEXT NOT NULL,
    user_type TEXT NOT NULL,
    user_id TEXT NOT NULL,
    email TEXT NOT NULL,
    name TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLiteStore keeps the session in a single-row SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and creates if needed) the session database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run session migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Load returns the stored session or ErrNoSession.
func (s *SQLiteStore) Load(ctx context.Context) (Credentials, error) {
	var creds Credentials
	err := s.db.QueryRowContext(ctx,
		"SELECT token, user_type, user_id, email, name FROM session WHERE id = 1",
	).Scan(&creds.Token, &creds.Type, &creds.User.ID, &creds.User.Email, &creds.User.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load session: %w", err)
	}
	creds.User.Type = creds.Type
	return creds, nil
}

// Save replaces the stored session.
func (s *SQLiteStore) Save(ctx context.Context, creds Credentials) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, token, user_type, user_id, email, name, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_type = excluded.user_type,
			user_id = excluded.user_id,
			email = excluded.email,
			name = excluded.name,
			updated_at = excluded.updated_at
	`,
		creds.Token,
		string(creds.Type),
		creds.User.ID,
		creds.User.Email,
		creds.User.Name,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

