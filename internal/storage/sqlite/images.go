package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/paladium/internal/models"
)

// CreateImage persists a new image record.
func (s *SQLiteStore) CreateImage(ctx context.Context, image *models.ImageRecord) error {
	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	if image.CreatedAt == 0 {
		image.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO images (id, name, url, created_at) VALUES (?, ?, ?, ?)",
		image.ID, image.Name, image.URL, image.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

// GetImage retrieves an image with its groups and annotations.
func (s *SQLiteStore) GetImage(ctx context.Context, imageID string) (*models.ImageRecord, error) {
	images, err := s.loadImages(ctx,
		"SELECT id, name, url, created_at FROM images WHERE id = ?",
		imageID,
	)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil // Image not found
	}
	return images[0], nil
}

// ListImages retrieves every image, oldest first.
func (s *SQLiteStore) ListImages(ctx context.Context) ([]*models.ImageRecord, error) {
	return s.loadImages(ctx, "SELECT id, name, url, created_at FROM images ORDER BY created_at, rowid")
}

// ImagesForAnnotator returns the images assigned to the annotator's group.
func (s *SQLiteStore) ImagesForAnnotator(ctx context.Context, annotatorID string) ([]*models.ImageRecord, error) {
	return s.loadImages(ctx, `
		SELECT DISTINCT i.id, i.name, i.url, i.created_at
		FROM images i
		JOIN image_groups ig ON ig.image_id = i.id
		JOIN group_members m ON m.group_id = ig.group_id
		WHERE m.annotator_id = ?
		ORDER BY i.created_at, i.rowid
	`, annotatorID)
}

// DeleteImage removes an image together with its assignments and annotations.
func (s *SQLiteStore) DeleteImage(ctx context.Context, imageID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", imageID)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image not found: %s", imageID)
	}
	return nil
}

// AddImageToGroup assigns an image to a group. Assigning twice is a no-op.
func (s *SQLiteStore) AddImageToGroup(ctx context.Context, imageID, groupID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO image_groups (image_id, group_id) VALUES (?, ?)",
		imageID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to add image to group: %w", err)
	}
	return nil
}

// RemoveImageFromGroup unassigns an image from a group.
func (s *SQLiteStore) RemoveImageFromGroup(ctx context.Context, imageID, groupID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM image_groups WHERE image_id = ? AND group_id = ?",
		imageID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove image from group: %w", err)
	}
	return nil
}

// loadImages runs query for image rows and attaches groups and annotations.
func (s *SQLiteStore) loadImages(ctx context.Context, query string, args ...any) ([]*models.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get images: %w", err)
	}
	defer rows.Close()

	images := []*models.ImageRecord{}
	byID := make(map[string]*models.ImageRecord)
	for rows.Next() {
		image := &models.ImageRecord{}
		if err := rows.Scan(&image.ID, &image.Name, &image.URL, &image.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		image.Groups = []models.Group{}
		image.Annotations = []models.Annotation{}
		images = append(images, image)
		byID[image.ID] = image
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate images: %w", err)
	}
	rows.Close()

	if len(images) == 0 {
		return images, nil
	}

	ids := make([]any, len(images))
	for i, image := range images {
		ids[i] = image.ID
	}

	if err := s.attachGroups(ctx, byID, ids); err != nil {
		return nil, err
	}
	if err := s.attachAnnotations(ctx, byID, ids); err != nil {
		return nil, err
	}

	return images, nil
}

func (s *SQLiteStore) attachGroups(ctx context.Context, byID map[string]*models.ImageRecord, ids []any) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ig.image_id, g.id, g.name, g.created_at
		FROM image_groups ig
		JOIN groups g ON g.id = ig.group_id
		WHERE ig.image_id IN (`+placeholders(len(ids))+`)
		ORDER BY g.created_at, g.rowid
	`, ids...)
	if err != nil {
		return fmt.Errorf("failed to get image groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var imageID string
		var g models.Group
		if err := rows.Scan(&imageID, &g.ID, &g.Name, &g.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan image group: %w", err)
		}
		image := byID[imageID]
		image.Groups = append(image.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate image groups: %w", err)
	}
	return nil
}

func (s *SQLiteStore) attachAnnotations(ctx context.Context, byID map[string]*models.ImageRecord, ids []any) error {
	annotations, err := queryAnnotations(ctx, s.db,
		"WHERE a.image_id IN ("+placeholders(len(ids))+")", ids...)
	if err != nil {
		return err
	}
	for _, a := range annotations {
		image := byID[a.ImageID]
		image.Annotations = append(image.Annotations, a)
	}
	return nil
}

// queryAnnotations loads annotations matching where, each with its tags in
// the order the annotator gave them.
func queryAnnotations(ctx context.Context, q queryer, where string, args ...any) ([]models.Annotation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.image_id, a.annotator_id, a.created_at, t.name
		FROM annotations a
		LEFT JOIN annotation_tags atag ON atag.annotation_id = a.id
		LEFT JOIN tags t ON t.id = atag.tag_id
		`+where+`
		ORDER BY a.created_at, a.rowid, atag.position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get annotations: %w", err)
	}
	defer rows.Close()

	var annotations []models.Annotation
	index := make(map[string]int)
	for rows.Next() {
		var id string
		var a models.Annotation
		var tag sql.NullString
		if err := rows.Scan(&id, &a.ImageID, &a.AnnotatorID, &a.CreatedAt, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		i, ok := index[id]
		if !ok {
			a.Tags = []string{}
			annotations = append(annotations, a)
			i = len(annotations) - 1
			index[id] = i
		}
		if tag.Valid {
			annotations[i].Tags = append(annotations[i].Tags, tag.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate annotations: %w", err)
	}

	return annotations, nil
}
