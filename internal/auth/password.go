package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/paladium/internal/models"
)

// maxPasswordBytes is the longest input bcrypt accepts; longer passwords are
// truncated before hashing and comparing.
const maxPasswordBytes = 72

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrEmptyPassword      = errors.New("password is required")
	ErrEmailExists        = errors.New("email already exists")
	ErrAccountNotFound    = errors.New("user not found")
)

// AccountStorage defines the interface for account persistence operations.
// Lookups return (nil, nil) when no account matches.
type AccountStorage interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, userType models.UserType, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, userType models.UserType, id string) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, userType models.UserType, id, hash string, updatedAt int64) error
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage AccountStorage
}

var _ Authenticator = (*PasswordAuthenticator)(nil)

// NewPasswordAuthenticator creates a new password-based authenticator.
func NewPasswordAuthenticator(storage AccountStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{
		storage: storage,
	}
}

// ValidateCredential rejects empty passwords.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if credential == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Register creates a new account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, userType models.UserType, email, name, credential string) (*models.Account, error) {
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	existing, err := a.storage.GetAccountByEmail(ctx, userType, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := hashPassword(credential)
	if err != nil {
		return nil, err
	}

	if userType != models.UserTypeAnnotator {
		name = ""
	}
	account := models.NewAccount(userType, email, name, hash)
	if err := a.storage.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// Authenticate verifies the email and password, returning the account if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, userType models.UserType, email, credential string) (*models.Account, error) {
	account, err := a.storage.GetAccountByEmail(ctx, userType, email)
	if err != nil || account == nil {
		return nil, ErrInvalidCredentials
	}

	if !checkPassword(account.PasswordHash, credential) {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// ChangeCredential replaces the password of the account with the given id.
func (a *PasswordAuthenticator) ChangeCredential(ctx context.Context, userType models.UserType, id, current, replacement string) error {
	if err := a.ValidateCredential(replacement); err != nil {
		return err
	}

	account, err := a.storage.GetAccountByID(ctx, userType, id)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return ErrAccountNotFound
	}

	if !checkPassword(account.PasswordHash, current) {
		return ErrWrongPassword
	}

	hash, err := hashPassword(replacement)
	if err != nil {
		return err
	}
	return a.storage.UpdatePasswordHash(ctx, userType, id, hash, time.Now().Unix())
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncate(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
