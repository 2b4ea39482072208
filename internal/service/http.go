// Package service implements the HTTP API of the reference backend: auth,
// annotators, groups, images with their tags, and annotations.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/middleware"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// Gate wraps handlers with the authentication they require.
type Gate struct {
	jwt *auth.JWTManager
}

// Authed requires any valid token.
func (g Gate) Authed(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(g.jwt)(h)
}

// Admin requires an admin token.
func (g Gate) Admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(g.jwt)(middleware.RequireType(models.UserTypeAdmin)(h))
}

// Annotator requires an annotator token.
func (g Gate) Annotator(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(g.jwt)(middleware.RequireType(models.UserTypeAnnotator)(h))
}

// NewHandler assembles every route of the backend. Uploaded files are served
// from uploadDir under /uploads/.
func NewHandler(store storage.Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager, uploadDir string) http.Handler {
	mux := http.NewServeMux()
	gate := Gate{jwt: jwtManager}

	NewAuthService(authenticator, jwtManager, store, slog.Default()).Mount(mux, gate)
	NewAnnotatorService(authenticator, store).Mount(mux, gate)
	NewGroupService(store).Mount(mux, gate)
	NewImageService(store, uploadDir).Mount(mux, gate)
	NewAnnotationService(store).Mount(mux, gate)

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "paladium annotation backend"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	middleware.WriteDetail(w, status, detail)
}

func writeOK(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, okResponse{OK: true, Message: message})
}

// fieldError is one entry of a 422 response, {"loc": [...], "msg": "..."}.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// validationError collects request validation failures.
type validationError []fieldError

func (v validationError) Error() string {
	return fmt.Sprintf("%d invalid field(s)", len(v))
}

func (v *validationError) add(loc, field, msg string) {
	*v = append(*v, fieldError{Loc: []string{loc, field}, Msg: msg, Type: "value_error"})
}

func (v validationError) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// writeRequestError answers 422 for validation errors and 400 otherwise.
func writeRequestError(w http.ResponseWriter, err error) {
	var verr validationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []fieldError(verr)})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var verr validationError
		verr.add("body", "", "invalid JSON body: "+err.Error())
		return verr
	}
	return nil
}

func requireField(v *validationError, field, value string) {
	if value == "" {
		v.add("body", field, "field required")
	}
}

func requireEmail(v *validationError, value string) {
	if value == "" {
		v.add("body", "email", "field required")
		return
	}
	if addr, err := mail.ParseAddress(value); err != nil || addr.Address != value {
		v.add("body", "email", "value is not a valid email address")
	}
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
