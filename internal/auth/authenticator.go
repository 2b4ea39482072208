package auth

import (
	"context"

	"github.com/mmynk/paladium/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// Admins and annotators are separate principals: the same email may exist once
// per user type.
type Authenticator interface {
	// Register creates a new account of the given type.
	// The name is only kept for annotators.
	Register(ctx context.Context, userType models.UserType, email, name, credential string) (*models.Account, error)

	// Authenticate verifies the credential and returns the account if it matches.
	Authenticate(ctx context.Context, userType models.UserType, email, credential string) (*models.Account, error)

	// ChangeCredential replaces the credential after checking the current one.
	ChangeCredential(ctx context.Context, userType models.UserType, id, current, replacement string) error

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
