package gateway

import (
	"context"
	"net/http"

	"github.com/mmynk/paladium/internal/models"
)

// SubmitAnnotation records an annotator's tags for an image, replacing any
// previous classification by the same annotator.
func (c *Client) SubmitAnnotation(ctx context.Context, annotatorID, imageID string, tags []string) error {
	return c.do(ctx, call{
		op:         "submit_annotation",
		method:     http.MethodPost,
		path:       "/annotations/{annotatorId}",
		pathParams: map[string]string{"annotatorId": annotatorID},
		body:       annotationRequest{ImageID: wireID(imageID), TagNames: tags},
	}, nil)
}

// AnnotatorImages returns the images visible to an annotator with their own
// classification of each.
func (c *Client) AnnotatorImages(ctx context.Context, annotatorID string) ([]models.AnnotatorImage, error) {
	var dtos []annotatorImageDTO
	err := c.do(ctx, call{
		op:         "annotator_images",
		method:     http.MethodGet,
		path:       "/annotations/images/{annotatorId}",
		pathParams: map[string]string{"annotatorId": annotatorID},
	}, &dtos)
	if err != nil {
		return nil, err
	}
	images := make([]models.AnnotatorImage, len(dtos))
	for i, d := range dtos {
		images[i] = models.AnnotatorImage{
			ID:         string(d.ID),
			Name:       d.Name,
			URL:        c.ResolveURL(d.URL),
			Tags:       append([]string{}, d.Tags...),
			Classified: d.IsClassified,
		}
	}
	return images, nil
}

// AnnotatorStats returns an annotator's classification progress.
func (c *Client) AnnotatorStats(ctx context.Context, annotatorID string) (models.AnnotatorStats, error) {
	var dto statsDTO
	err := c.do(ctx, call{
		op:         "annotator_stats",
		method:     http.MethodGet,
		path:       "/annotations/stats/{annotatorId}",
		pathParams: map[string]string{"annotatorId": annotatorID},
	}, &dto)
	if err != nil {
		return models.AnnotatorStats{}, err
	}
	return models.AnnotatorStats{
		AnnotatorID: string(dto.AnnotatorID),
		Total:       dto.TotalImages,
		Classified:  dto.ClassifiedImages,
		Remaining:   dto.RemainingImages,
		Percentage:  dto.ProgressPercentage,
	}, nil
}
