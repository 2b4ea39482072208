package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/paladium/internal/calculator"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// maxUploadSize caps the multipart body of an image upload.
const maxUploadSize = 32 << 20

// ImageService manages images, their group assignments and their tags.
type ImageService struct {
	store     storage.Store
	uploadDir string
}

// NewImageService creates a new ImageService that writes uploads to uploadDir.
func NewImageService(store storage.Store, uploadDir string) *ImageService {
	return &ImageService{store: store, uploadDir: uploadDir}
}

// Mount registers the service's routes.
func (s *ImageService) Mount(mux *http.ServeMux, gate Gate) {
	mux.Handle("GET /images/{$}", gate.Admin(s.ListImages))
	mux.Handle("POST /images/upload", gate.Admin(s.UploadImage))
	mux.Handle("DELETE /images/{imageId}", gate.Admin(s.DeleteImage))
	mux.Handle("DELETE /images/{imageId}/tags/{tag}", gate.Admin(s.DeleteTag))
	mux.Handle("PATCH /images/{imageId}/tags/{tag}", gate.Admin(s.RenameTag))
	mux.Handle("POST /images/{imageId}/groups/{groupId}", gate.Admin(s.AddToGroup))
	mux.Handle("DELETE /images/{imageId}/groups/{groupId}", gate.Admin(s.RemoveFromGroup))
}

type uploadResponse struct {
	OK   bool   `json:"ok"`
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type renameTagRequest struct {
	NewTagName string `json:"new_tag_name"`
}

type removeTagResponse struct {
	OK           bool   `json:"ok"`
	Message      string `json:"message"`
	RemovedCount int    `json:"removed_count"`
}

type renameTagResponse struct {
	OK            bool   `json:"ok"`
	Message       string `json:"message"`
	UpdatedCount  int    `json:"updated_count"`
	Merged        bool   `json:"merged"`
	OldTagDeleted bool   `json:"old_tag_deleted"`
}

// ListImages returns every image with its groups and tag agreement.
func (s *ImageService) ListImages(w http.ResponseWriter, r *http.Request) {
	slog.Info("ListImages request received")

	images, err := s.store.ListImages(r.Context())
	if err != nil {
		internalError(w, "ListImages", err)
		return
	}
	tagIDs, err := s.store.TagIDs(r.Context())
	if err != nil {
		internalError(w, "ListImages", err)
		return
	}

	resp := make([]imageResponse, 0, len(images))
	for _, image := range images {
		resp = append(resp, newImageResponse(image, tagIDs))
	}

	slog.Info("ListImages successful", "count", len(resp))
	writeJSON(w, http.StatusOK, resp)
}

func newImageResponse(image *models.ImageRecord, tagIDs map[string]string) imageResponse {
	tagLists := make([][]string, len(image.Annotations))
	for i, a := range image.Annotations {
		tagLists[i] = a.Tags
	}
	agreement := calculator.TagAgreement(tagLists)

	out := imageResponse{
		ID:              image.ID,
		Name:            image.Name,
		URL:             image.URL,
		Tags:            make([]tagResponse, 0, len(agreement.Tags)),
		Groups:          make([]groupRefResponse, 0, len(image.Groups)),
		TotalAnnotators: agreement.TotalAnnotators,
		HasConflict:     agreement.HasConflict,
		DateAdded:       timestamp(image.CreatedAt),
	}
	for _, tag := range agreement.Tags {
		out.Tags = append(out.Tags, tagResponse{
			ID:         tagIDs[tag.Name],
			Name:       tag.Name,
			Count:      tag.Count,
			Percentage: tag.Percentage,
		})
	}
	for _, g := range image.Groups {
		out.Groups = append(out.Groups, groupRefResponse{ID: g.ID, Name: g.Name})
	}
	return out
}

// UploadImage stores an uploaded image file and records it.
func (s *ImageService) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var verr validationError
		verr.add("body", "file", "field required")
		writeRequestError(w, verr)
		return
	}
	defer file.Close()
	slog.Info("UploadImage request received", "filename", header.Filename, "size", header.Size)

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, http.StatusBadRequest, "Only image files are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		writeError(w, http.StatusBadRequest, "Invalid image")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	stored := strings.ReplaceAll(uuid.New().String(), "-", "") + ext

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		internalError(w, "UploadImage", fmt.Errorf("failed to create upload dir: %w", err))
		return
	}
	path := filepath.Join(s.uploadDir, stored)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		internalError(w, "UploadImage", fmt.Errorf("failed to write upload: %w", err))
		return
	}

	image := &models.ImageRecord{Name: header.Filename, URL: "/uploads/" + stored}
	if err := s.store.CreateImage(r.Context(), image); err != nil {
		_ = os.Remove(path)
		internalError(w, "UploadImage", err)
		return
	}

	slog.Info("Image uploaded", "image_id", image.ID, "file", stored)
	writeJSON(w, http.StatusOK, uploadResponse{OK: true, ID: image.ID, Name: image.Name, URL: image.URL})
}

// DeleteImage removes an image record and its file.
func (s *ImageService) DeleteImage(w http.ResponseWriter, r *http.Request) {
	image, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	slog.Info("DeleteImage request received", "image_id", image.ID)

	if err := s.store.DeleteImage(r.Context(), image.ID); err != nil {
		internalError(w, "DeleteImage", err)
		return
	}
	if name := strings.TrimPrefix(image.URL, "/uploads/"); name != image.URL {
		if err := os.Remove(filepath.Join(s.uploadDir, filepath.Base(name))); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to remove image file", "image_id", image.ID, "error", err)
		}
	}

	writeOK(w, "Image deleted")
}

// DeleteTag removes a tag from every annotation of the image.
func (s *ImageService) DeleteTag(w http.ResponseWriter, r *http.Request) {
	image, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	tag := r.PathValue("tag")
	slog.Info("DeleteTag request received", "image_id", image.ID, "tag", tag)

	removed, err := s.store.RemoveTag(r.Context(), image.ID, strings.ToLower(tag))
	if err != nil {
		if errors.Is(err, storage.ErrTagNotFound) {
			writeError(w, http.StatusNotFound, "Tag not found")
			return
		}
		internalError(w, "DeleteTag", err)
		return
	}

	slog.Info("Tag removed", "image_id", image.ID, "tag", tag, "removed", removed)
	writeJSON(w, http.StatusOK, removeTagResponse{
		OK:           true,
		Message:      fmt.Sprintf("Tag '%s' removed from %d annotation(s)", tag, removed),
		RemovedCount: removed,
	})
}

// RenameTag renames a tag on every annotation of the image, merging into the
// target tag when it already exists.
func (s *ImageService) RenameTag(w http.ResponseWriter, r *http.Request) {
	image, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	oldName := strings.ToLower(r.PathValue("tag"))

	var req renameTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	newName := models.NormalizeTag(req.NewTagName)
	slog.Info("RenameTag request received", "image_id", image.ID, "old", oldName, "new", newName)

	if newName == "" {
		writeError(w, http.StatusBadRequest, "New tag name cannot be empty")
		return
	}
	if newName == oldName {
		writeError(w, http.StatusBadRequest, "New tag name is the same as the old one")
		return
	}

	result, err := s.store.RenameTag(r.Context(), image.ID, oldName, newName)
	if err != nil {
		if errors.Is(err, storage.ErrTagNotFound) {
			writeError(w, http.StatusNotFound, "Tag not found")
			return
		}
		internalError(w, "RenameTag", err)
		return
	}

	slog.Info("Tag renamed", "image_id", image.ID, "updated", result.Updated, "merged", result.Merged)
	writeJSON(w, http.StatusOK, renameTagResponse{
		OK:            true,
		Message:       fmt.Sprintf("Tag '%s' renamed to '%s' in %d annotation(s)", r.PathValue("tag"), req.NewTagName, result.Updated),
		UpdatedCount:  result.Updated,
		Merged:        result.Merged,
		OldTagDeleted: result.OldTagDeleted,
	})
}

// AddToGroup assigns the image to a group.
func (s *ImageService) AddToGroup(w http.ResponseWriter, r *http.Request) {
	image, group, ok := s.loadImageAndGroup(w, r)
	if !ok {
		return
	}
	slog.Info("AddToGroup request received", "image_id", image.ID, "group_id", group.ID)

	if err := s.store.AddImageToGroup(r.Context(), image.ID, group.ID); err != nil {
		internalError(w, "AddToGroup", err)
		return
	}
	writeOK(w, "Image added to group")
}

// RemoveFromGroup unassigns the image from a group.
func (s *ImageService) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	image, group, ok := s.loadImageAndGroup(w, r)
	if !ok {
		return
	}
	slog.Info("RemoveFromGroup request received", "image_id", image.ID, "group_id", group.ID)

	if err := s.store.RemoveImageFromGroup(r.Context(), image.ID, group.ID); err != nil {
		internalError(w, "RemoveFromGroup", err)
		return
	}
	writeOK(w, "Image removed from group")
}

func (s *ImageService) loadImage(w http.ResponseWriter, r *http.Request) (*models.ImageRecord, bool) {
	return loadImage(w, r, s.store, r.PathValue("imageId"))
}

func (s *ImageService) loadImageAndGroup(w http.ResponseWriter, r *http.Request) (*models.ImageRecord, *models.Group, bool) {
	image, ok := s.loadImage(w, r)
	if !ok {
		return nil, nil, false
	}
	group, err := s.store.GetGroup(r.Context(), r.PathValue("groupId"))
	if err != nil {
		internalError(w, "GetGroup", err)
		return nil, nil, false
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "Group not found")
		return nil, nil, false
	}
	return image, group, true
}

func loadImage(w http.ResponseWriter, r *http.Request, store storage.Store, id string) (*models.ImageRecord, bool) {
	image, err := store.GetImage(r.Context(), id)
	if err != nil {
		internalError(w, "GetImage", err)
		return nil, false
	}
	if image == nil {
		writeError(w, http.StatusNotFound, "Image not found")
		return nil, false
	}
	return image, true
}
