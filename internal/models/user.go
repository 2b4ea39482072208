package models

import (
	"time"

	"github.com/google/uuid"
)

// UserType distinguishes the two kinds of principals the backend knows.
type UserType string

const (
	UserTypeAdmin     UserType = "admin"
	UserTypeAnnotator UserType = "annotator"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypeAdmin || t == UserTypeAnnotator
}

// User is the principal of a session, as returned by /auth/me.
type User struct {
	ID    string
	Email string

	// Name is empty for admins.
	Name string

	Type UserType
}

// Account is the backend's stored credential record for a user.
// It never leaves the reference backend.
type Account struct {
	User

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	CreatedAt int64
	UpdatedAt int64
}

// NewAccount creates an account with a fresh id and timestamps.
func NewAccount(userType UserType, email, name, passwordHash string) *Account {
	now := time.Now().Unix()
	return &Account{
		User: User{
			ID:    uuid.New().String(),
			Email: email,
			Name:  name,
			Type:  userType,
		},
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Person returns the public view of an annotator account.
func (a *Account) Person() Person {
	return Person{ID: a.ID, Name: a.Name, Email: a.Email}
}
