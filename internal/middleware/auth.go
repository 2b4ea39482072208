// Package middleware holds the HTTP middleware of the reference backend.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// UserTypeKey is the context key for storing the authenticated user type.
	UserTypeKey contextKey = "user_type"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetUserType extracts the user type from the context.
// Returns empty string if not found.
func GetUserType(ctx context.Context) models.UserType {
	userType, _ := ctx.Value(UserTypeKey).(models.UserType)
	return userType
}

// WithUser returns a copy of ctx carrying the authenticated principal.
func WithUser(ctx context.Context, userID string, userType models.UserType) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserTypeKey, userType)
}

// RequireAuth returns a middleware that validates JWT tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, and adds
// the user ID and type to the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				WriteDetail(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID(), claims.Type)))
		})
	}
}

// RequireType rejects authenticated users of any other type with 403.
// It must run after RequireAuth.
func RequireType(userType models.UserType) func(http.Handler) http.Handler {
	detail := "Admin access required"
	if userType == models.UserTypeAnnotator {
		detail = "Annotator access required"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUserType(r.Context()) != userType {
				WriteDetail(w, http.StatusForbidden, detail)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuth validates a bearer token if present, but allows requests
// without one. Invalid tokens are ignored.
func OptionalAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if claims, err := jwtManager.Validate(token); err == nil {
					r = r.WithContext(WithUser(r.Context(), claims.UserID(), claims.Type))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// WriteDetail writes an error body of the form {"detail": "..."}.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
