package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/middleware"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// AuthService serves login, registration and the current-user endpoints
// for both admins and annotators.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	store         storage.Store
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, store storage.Store, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		store:         store,
		logger:        logger,
	}
}

// Mount registers the service's routes.
func (s *AuthService) Mount(mux *http.ServeMux, gate Gate) {
	mux.HandleFunc("POST /auth/{userType}/login", s.Login)
	mux.HandleFunc("POST /auth/{userType}/register", s.Register)
	mux.Handle("POST /auth/annotator/change-password", gate.Annotator(s.ChangePassword))
	mux.Handle("GET /auth/me", gate.Authed(s.Me))
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func userTypeParam(w http.ResponseWriter, r *http.Request) (models.UserType, bool) {
	userType := models.UserType(r.PathValue("userType"))
	if !userType.Valid() {
		http.NotFound(w, r)
		return "", false
	}
	return userType, true
}

// Register creates an account and returns a token for it.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	userType, ok := userTypeParam(w, r)
	if !ok {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	s.logger.Info("Register request", "email", req.Email, "user_type", userType)

	var verr validationError
	if userType == models.UserTypeAnnotator {
		requireField(&verr, "name", req.Name)
	}
	requireEmail(&verr, req.Email)
	requireField(&verr, "password", req.Password)
	if err := verr.err(); err != nil {
		writeRequestError(w, err)
		return
	}

	account, err := s.authenticator.Register(r.Context(), userType, req.Email, req.Name, req.Password)
	if err != nil {
		s.logger.Error("Registration failed", "email", req.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			writeError(w, http.StatusConflict, "Email already exists")
		case errors.Is(err, auth.ErrEmptyPassword):
			writeError(w, http.StatusBadRequest, "Password is required")
		default:
			internalError(w, "Register", err)
		}
		return
	}

	s.issueToken(w, account.User)
	s.logger.Info("User registered successfully", "user_id", account.ID, "user_type", userType)
}

// Login authenticates an account and returns a token.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	userType, ok := userTypeParam(w, r)
	if !ok {
		return
	}

	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	s.logger.Info("Login request", "email", req.Email, "user_type", userType)

	var verr validationError
	requireEmail(&verr, req.Email)
	requireField(&verr, "password", req.Password)
	if err := verr.err(); err != nil {
		writeRequestError(w, err)
		return
	}

	account, err := s.authenticator.Authenticate(r.Context(), userType, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Email, "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.issueToken(w, account.User)
	s.logger.Info("User logged in successfully", "user_id", account.ID, "user_type", userType)
}

func (s *AuthService) issueToken(w http.ResponseWriter, user models.User) {
	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, Type: user.Type})
}

// Me returns the user a token belongs to.
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	userType := middleware.GetUserType(r.Context())

	account, err := s.store.GetAccountByID(r.Context(), userType, userID)
	if err != nil {
		internalError(w, "Me", err)
		return
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	resp := userResponse{ID: account.ID, Email: account.Email, Type: userType}
	if userType == models.UserTypeAnnotator {
		resp.Name = account.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChangePassword replaces the signed-in annotator's password.
func (s *AuthService) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	s.logger.Info("ChangePassword request", "user_id", userID)

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	err := s.authenticator.ChangeCredential(r.Context(), models.UserTypeAnnotator, userID, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		writeOK(w, "Password changed successfully")
	case errors.Is(err, auth.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, auth.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrEmptyPassword):
		writeError(w, http.StatusBadRequest, "New password is required")
	default:
		internalError(w, "ChangePassword", err)
	}
}
