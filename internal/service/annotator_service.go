package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// AnnotatorService lets admins list and create annotators.
type AnnotatorService struct {
	authenticator auth.Authenticator
	store         storage.Store
}

// NewAnnotatorService creates a new AnnotatorService.
func NewAnnotatorService(authenticator auth.Authenticator, store storage.Store) *AnnotatorService {
	return &AnnotatorService{authenticator: authenticator, store: store}
}

// Mount registers the service's routes.
func (s *AnnotatorService) Mount(mux *http.ServeMux, gate Gate) {
	mux.Handle("GET /annotators/{$}", gate.Admin(s.ListAnnotators))
	mux.Handle("POST /annotators/{$}", gate.Admin(s.CreateAnnotator))
}

// ListAnnotators returns every annotator.
func (s *AnnotatorService) ListAnnotators(w http.ResponseWriter, r *http.Request) {
	slog.Info("ListAnnotators request received")

	people, err := s.store.ListAnnotators(r.Context())
	if err != nil {
		internalError(w, "ListAnnotators", err)
		return
	}

	resp := make([]personResponse, 0, len(people))
	for _, p := range people {
		resp = append(resp, newPersonResponse(p))
	}

	slog.Info("ListAnnotators successful", "count", len(resp))
	writeJSON(w, http.StatusOK, resp)
}

// CreateAnnotator registers an annotator on their behalf.
func (s *AnnotatorService) CreateAnnotator(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	slog.Info("CreateAnnotator request received", "email", req.Email)

	var verr validationError
	requireField(&verr, "name", req.Name)
	requireEmail(&verr, req.Email)
	requireField(&verr, "password", req.Password)
	if err := verr.err(); err != nil {
		writeRequestError(w, err)
		return
	}

	account, err := s.authenticator.Register(r.Context(), models.UserTypeAnnotator, req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeError(w, http.StatusConflict, "Email already exists")
			return
		}
		internalError(w, "CreateAnnotator", err)
		return
	}

	slog.Info("Annotator created", "annotator_id", account.ID)
	writeJSON(w, http.StatusOK, newPersonResponse(account.Person()))
}
