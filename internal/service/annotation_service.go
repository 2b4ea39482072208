package service

import (
	"log/slog"
	"net/http"

	"github.com/mmynk/paladium/internal/calculator"
	"github.com/mmynk/paladium/internal/middleware"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// AnnotationService records annotators' classifications and reports their
// progress.
type AnnotationService struct {
	store storage.Store
}

// NewAnnotationService creates a new AnnotationService.
func NewAnnotationService(store storage.Store) *AnnotationService {
	return &AnnotationService{store: store}
}

// Mount registers the service's routes. Annotators may only act for
// themselves; admins may act for anyone.
func (s *AnnotationService) Mount(mux *http.ServeMux, gate Gate) {
	mux.Handle("POST /annotations/{annotatorId}", gate.Authed(s.SubmitAnnotation))
	mux.Handle("GET /annotations/images/{annotatorId}", gate.Authed(s.ImagesForAnnotator))
	mux.Handle("GET /annotations/stats/{annotatorId}", gate.Authed(s.Stats))
}

type annotationRequest struct {
	ImageID  flexID   `json:"image_id"`
	TagNames []string `json:"tag_names"`
}

// SubmitAnnotation creates or replaces the annotator's tags for an image.
func (s *AnnotationService) SubmitAnnotation(w http.ResponseWriter, r *http.Request) {
	annotator, ok := s.loadAnnotator(w, r)
	if !ok {
		return
	}

	var req annotationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}
	slog.Info("SubmitAnnotation request received", "annotator_id", annotator.ID, "image_id", req.ImageID, "tags", len(req.TagNames))

	if req.ImageID == "" {
		var verr validationError
		verr.add("body", "image_id", "field required")
		writeRequestError(w, verr)
		return
	}
	image, ok := loadImage(w, r, s.store, string(req.ImageID))
	if !ok {
		return
	}

	tags := make([]string, 0, len(req.TagNames))
	for _, name := range req.TagNames {
		tags = append(tags, models.NormalizeTag(name))
	}

	created, err := s.store.SaveAnnotation(r.Context(), &models.Annotation{
		AnnotatorID: annotator.ID,
		ImageID:     image.ID,
		Tags:        tags,
	})
	if err != nil {
		internalError(w, "SubmitAnnotation", err)
		return
	}

	if created {
		slog.Info("Annotation created", "annotator_id", annotator.ID, "image_id", image.ID)
		writeOK(w, "Annotation created")
		return
	}
	slog.Info("Annotation updated", "annotator_id", annotator.ID, "image_id", image.ID)
	writeOK(w, "Annotation updated")
}

// ImagesForAnnotator lists the images visible to the annotator together
// with their own classification of each.
func (s *AnnotationService) ImagesForAnnotator(w http.ResponseWriter, r *http.Request) {
	annotator, ok := s.loadAnnotator(w, r)
	if !ok {
		return
	}
	slog.Info("ImagesForAnnotator request received", "annotator_id", annotator.ID)

	images, err := s.store.ImagesForAnnotator(r.Context(), annotator.ID)
	if err != nil {
		internalError(w, "ImagesForAnnotator", err)
		return
	}

	resp := make([]annotatorImageResponse, 0, len(images))
	for _, image := range images {
		item := annotatorImageResponse{
			ID:        image.ID,
			Name:      image.Name,
			URL:       image.URL,
			Tags:      []string{},
			DateAdded: timestamp(image.CreatedAt),
		}
		if a := ownAnnotation(image, annotator.ID); a != nil {
			item.IsClassified = true
			item.Tags = append(item.Tags, a.Tags...)
			at := timestamp(a.CreatedAt)
			item.ClassifiedAt = &at
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats reports how many of the annotator's images are classified.
func (s *AnnotationService) Stats(w http.ResponseWriter, r *http.Request) {
	annotator, ok := s.loadAnnotator(w, r)
	if !ok {
		return
	}
	slog.Info("Stats request received", "annotator_id", annotator.ID)

	images, err := s.store.ImagesForAnnotator(r.Context(), annotator.ID)
	if err != nil {
		internalError(w, "Stats", err)
		return
	}
	classified := 0
	for _, image := range images {
		if ownAnnotation(image, annotator.ID) != nil {
			classified++
		}
	}

	progress := calculator.AnnotatorProgress(len(images), classified)
	writeJSON(w, http.StatusOK, statsResponse{
		AnnotatorID:        annotator.ID,
		TotalImages:        progress.Total,
		ClassifiedImages:   progress.Classified,
		RemainingImages:    progress.Remaining,
		ProgressPercentage: progress.Percentage,
	})
}

// loadAnnotator resolves the path's annotator and checks the caller may act
// for them.
func (s *AnnotationService) loadAnnotator(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	id := r.PathValue("annotatorId")
	if middleware.GetUserType(r.Context()) != models.UserTypeAdmin && middleware.GetUserID(r.Context()) != id {
		writeError(w, http.StatusForbidden, "Not allowed to act for another annotator")
		return nil, false
	}
	return loadAnnotator(w, r, s.store, id)
}

func ownAnnotation(image *models.ImageRecord, annotatorID string) *models.Annotation {
	for i := range image.Annotations {
		if image.Annotations[i].AnnotatorID == annotatorID {
			return &image.Annotations[i]
		}
	}
	return nil
}
