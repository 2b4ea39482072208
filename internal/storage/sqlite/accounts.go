package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/paladium/internal/models"
)

// CreateAccount inserts a new admin or annotator account.
func (s *SQLiteStore) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, user_type, email, name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		string(account.Type),
		account.Email,
		account.Name,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByEmail retrieves an account of the given type by email address.
func (s *SQLiteStore) GetAccountByEmail(ctx context.Context, userType models.UserType, email string) (*models.Account, error) {
	query := `
		SELECT id, user_type, email, name, password_hash, created_at, updated_at
		FROM accounts
		WHERE user_type = ? AND email = ?
	`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, string(userType), email))
	if err == sql.ErrNoRows {
		return nil, nil // Account not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

// GetAccountByID retrieves an account of the given type by ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, userType models.UserType, id string) (*models.Account, error) {
	query := `
		SELECT id, user_type, email, name, password_hash, created_at, updated_at
		FROM accounts
		WHERE user_type = ? AND id = ?
	`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, string(userType), id))
	if err == sql.ErrNoRows {
		return nil, nil // Account not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}

	return account, nil
}

// UpdatePasswordHash replaces an account's password hash.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, userType models.UserType, id, hash string, updatedAt int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET password_hash = ?, updated_at = ? WHERE user_type = ? AND id = ?",
		hash, updatedAt, string(userType), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// ListAnnotators returns every annotator in creation order.
func (s *SQLiteStore) ListAnnotators(ctx context.Context) ([]models.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email FROM accounts WHERE user_type = ? ORDER BY created_at, rowid",
		string(models.UserTypeAnnotator),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotators: %w", err)
	}
	defer rows.Close()

	people := []models.Person{}
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan annotator: %w", err)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotators: %w", err)
	}

	return people, nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Type,
		&account.Email,
		&account.Name,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}
