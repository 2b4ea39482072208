package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// GroupService manages groups and their members.
type GroupService struct {
	store storage.Store
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store}
}

// Mount registers the service's routes.
func (s *GroupService) Mount(mux *http.ServeMux, gate Gate) {
	mux.Handle("GET /groups/{$}", gate.Admin(s.ListGroups))
	mux.Handle("POST /groups/{$}", gate.Admin(s.CreateGroup))
	mux.Handle("GET /groups/{groupId}", gate.Admin(s.GetGroup))
	mux.Handle("DELETE /groups/{groupId}", gate.Admin(s.DeleteGroup))
	mux.Handle("POST /groups/{groupId}/members", gate.Admin(s.AddMember))
	mux.Handle("DELETE /groups/{groupId}/members/{annotatorId}", gate.Admin(s.RemoveMember))
}

type addMemberRequest struct {
	AnnotatorID flexID `json:"annotator_id"`
}

// CreateGroup creates an empty group. The name comes from the query string.
func (s *GroupService) CreateGroup(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	slog.Info("CreateGroup request received", "name", name)

	if name == "" {
		var verr validationError
		verr.add("query", "name", "field required")
		writeRequestError(w, verr)
		return
	}

	existing, err := s.store.GetGroupByName(r.Context(), name)
	if err != nil {
		internalError(w, "CreateGroup", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "Group already exists")
		return
	}

	group := &models.Group{Name: name}
	if err := s.store.CreateGroup(r.Context(), group); err != nil {
		internalError(w, "CreateGroup", err)
		return
	}

	slog.Info("Group created", "group_id", group.ID)
	writeJSON(w, http.StatusOK, groupRefResponse{ID: group.ID, Name: group.Name})
}

// ListGroups returns every group with its members.
func (s *GroupService) ListGroups(w http.ResponseWriter, r *http.Request) {
	slog.Info("ListGroups request received")

	groups, err := s.store.ListGroups(r.Context())
	if err != nil {
		internalError(w, "ListGroups", err)
		return
	}

	resp := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, newGroupResponse(g))
	}

	slog.Info("ListGroups successful", "count", len(groups))
	writeJSON(w, http.StatusOK, resp)
}

// GetGroup returns one group with its members.
func (s *GroupService) GetGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := s.loadGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(group))
}

// DeleteGroup deletes a group. Members become unassigned.
func (s *GroupService) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := s.loadGroup(w, r)
	if !ok {
		return
	}
	slog.Info("DeleteGroup request received", "group_id", group.ID)

	if err := s.store.DeleteGroup(r.Context(), group.ID); err != nil {
		internalError(w, "DeleteGroup", err)
		return
	}

	slog.Info("Group deleted", "group_id", group.ID)
	writeOK(w, "Group deleted")
}

// AddMember puts an annotator into a group. An annotator may only be in one
// group at a time.
func (s *GroupService) AddMember(w http.ResponseWriter, r *http.Request) {
	group, ok := s.loadGroup(w, r)
	if !ok {
		return
	}

	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	annotatorID := string(req.AnnotatorID)
	slog.Info("AddMember request received", "group_id", group.ID, "annotator_id", annotatorID)

	if _, ok := s.loadAnnotator(w, r, annotatorID); !ok {
		return
	}
	if !s.checkUnassigned(w, r, group, annotatorID) {
		return
	}

	if err := s.store.AddMember(r.Context(), group.ID, annotatorID); err != nil {
		// A concurrent request may have assigned the annotator first.
		if !s.checkUnassigned(w, r, group, annotatorID) {
			return
		}
		internalError(w, "AddMember", err)
		return
	}

	s.respondGroup(w, r, group.ID)
}

// checkUnassigned writes a 400 and returns false if the annotator already
// belongs to a group.
func (s *GroupService) checkUnassigned(w http.ResponseWriter, r *http.Request, group *models.Group, annotatorID string) bool {
	current, err := s.store.GroupOfAnnotator(r.Context(), annotatorID)
	if err != nil {
		internalError(w, "AddMember", err)
		return false
	}
	switch {
	case current == nil:
		return true
	case current.ID == group.ID:
		writeError(w, http.StatusBadRequest, "Annotator is already in this group")
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Annotator is already in group '%s'", current.Name))
	}
	return false
}

// RemoveMember takes an annotator out of a group.
func (s *GroupService) RemoveMember(w http.ResponseWriter, r *http.Request) {
	group, ok := s.loadGroup(w, r)
	if !ok {
		return
	}
	annotatorID := r.PathValue("annotatorId")
	slog.Info("RemoveMember request received", "group_id", group.ID, "annotator_id", annotatorID)

	if _, ok := s.loadAnnotator(w, r, annotatorID); !ok {
		return
	}
	if !group.HasMember(annotatorID) {
		writeError(w, http.StatusBadRequest, "Annotator is not in this group")
		return
	}

	if err := s.store.RemoveMember(r.Context(), group.ID, annotatorID); err != nil {
		internalError(w, "RemoveMember", err)
		return
	}

	s.respondGroup(w, r, group.ID)
}

func (s *GroupService) respondGroup(w http.ResponseWriter, r *http.Request, groupID string) {
	group, err := s.store.GetGroup(r.Context(), groupID)
	if err != nil || group == nil {
		internalError(w, "GetGroup", fmt.Errorf("reload group %s: %w", groupID, err))
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(group))
}

func (s *GroupService) loadGroup(w http.ResponseWriter, r *http.Request) (*models.Group, bool) {
	group, err := s.store.GetGroup(r.Context(), r.PathValue("groupId"))
	if err != nil {
		internalError(w, "GetGroup", err)
		return nil, false
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "Group not found")
		return nil, false
	}
	return group, true
}

func (s *GroupService) loadAnnotator(w http.ResponseWriter, r *http.Request, id string) (*models.Account, bool) {
	return loadAnnotator(w, r, s.store, id)
}

func loadAnnotator(w http.ResponseWriter, r *http.Request, store storage.Store, id string) (*models.Account, bool) {
	account, err := store.GetAccountByID(r.Context(), models.UserTypeAnnotator, id)
	if err != nil {
		internalError(w, "GetAnnotator", err)
		return nil, false
	}
	if account == nil {
		writeError(w, http.StatusNotFound, "Annotator not found")
		return nil, false
	}
	return account, true
}
