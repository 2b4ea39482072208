package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmynk/paladium/internal/models"
)

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, userType models.UserType, email, password string) (string, error) {
	if !userType.Valid() {
		return "", fmt.Errorf("unknown user type %q", userType)
	}
	var tok tokenDTO
	err := c.do(ctx, call{
		op:                "login",
		checksCredentials: true,
		method:            http.MethodPost,
		path:              "/auth/" + string(userType) + "/login",
		body:              credentialsRequest{Email: email, Password: password},
	}, &tok)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// Register creates an account and returns a bearer token for it.
// The name is only sent for annotators.
func (c *Client) Register(ctx context.Context, userType models.UserType, email, password, name string) (string, error) {
	if !userType.Valid() {
		return "", fmt.Errorf("unknown user type %q", userType)
	}
	body := credentialsRequest{Email: email, Password: password}
	if userType == models.UserTypeAnnotator {
		body.Name = name
	}
	var tok tokenDTO
	err := c.do(ctx, call{
		op:                "register",
		checksCredentials: true,
		method:            http.MethodPost,
		path:              "/auth/" + string(userType) + "/register",
		body:              body,
	}, &tok)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// Me resolves a token into the user it belongs to.
// The token is passed explicitly so a stored token can be checked before it
// becomes the client's active token.
func (c *Client) Me(ctx context.Context, token string) (models.User, error) {
	var dto userDTO
	err := c.do(ctx, call{
		op:     "me",
		method: http.MethodGet,
		path:   "/auth/me",
		token:  token,
	}, &dto)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:    string(dto.ID),
		Email: dto.Email,
		Name:  dto.Name,
		Type:  models.UserType(dto.Type),
	}, nil
}

// ChangePassword changes the signed-in annotator's password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, call{
		op:                "change_password",
		checksCredentials: true,
		method:            http.MethodPost,
		path:              "/auth/annotator/change-password",
		body:              changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword},
	}, nil)
}
