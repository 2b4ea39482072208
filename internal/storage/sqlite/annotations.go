package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/storage"
)

// SaveAnnotation stores the annotator's tags for an image. An earlier
// annotation by the same annotator is replaced.
func (s *SQLiteStore) SaveAnnotation(ctx context.Context, annotation *models.Annotation) (bool, error) {
	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	created := false
	err = tx.QueryRowContext(ctx,
		"SELECT id, created_at FROM annotations WHERE image_id = ? AND annotator_id = ?",
		annotation.ImageID, annotation.AnnotatorID,
	).Scan(&id, &annotation.CreatedAt)
	switch {
	case err == sql.ErrNoRows:
		id = uuid.New().String()
		annotation.CreatedAt = now
		created = true
		_, err = tx.ExecContext(ctx,
			"INSERT INTO annotations (id, image_id, annotator_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			id, annotation.ImageID, annotation.AnnotatorID, now, now,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert annotation: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("failed to get annotation: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, "UPDATE annotations SET updated_at = ? WHERE id = ?", now, id); err != nil {
			return false, fmt.Errorf("failed to update annotation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM annotation_tags WHERE annotation_id = ?", id); err != nil {
			return false, fmt.Errorf("failed to clear annotation tags: %w", err)
		}
	}

	seen := make(map[string]bool, len(annotation.Tags))
	position := 0
	for _, name := range annotation.Tags {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tagID, _, err := ensureTag(ctx, tx, name)
		if err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO annotation_tags (annotation_id, tag_id, position) VALUES (?, ?, ?)",
			id, tagID, position,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert annotation tag: %w", err)
		}
		position++
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// TagIDs maps every tag name to its id.
func (s *SQLiteStore) TagIDs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM tags")
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		ids[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return ids, nil
}

// RemoveTag drops a tag from every annotation of one image.
func (s *SQLiteStore) RemoveTag(ctx context.Context, imageID, tag string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tagID, err := tagIDByName(ctx, tx, tag)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM annotation_tags
		WHERE tag_id = ?
		AND annotation_id IN (SELECT id FROM annotations WHERE image_id = ?)
	`, tagID, imageID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove tag: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int(removed), nil
}

// RenameTag replaces a tag in every annotation of one image. When the new
// name already exists the two tags are merged. The old tag is deleted once
// no annotation uses it.
func (s *SQLiteStore) RenameTag(ctx context.Context, imageID, oldName, newName string) (storage.TagRename, error) {
	var result storage.TagRename

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	oldID, err := tagIDByName(ctx, tx, oldName)
	if err != nil {
		return result, err
	}

	newID, existed, err := ensureTag(ctx, tx, newName)
	if err != nil {
		return result, err
	}
	result.Merged = existed

	type link struct {
		annotationID string
		position     int
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT annotation_id, position
		FROM annotation_tags
		WHERE tag_id = ?
		AND annotation_id IN (SELECT id FROM annotations WHERE image_id = ?)
	`, oldID, imageID)
	if err != nil {
		return result, fmt.Errorf("failed to get tagged annotations: %w", err)
	}
	var links []link
	for rows.Next() {
		var l link
		if err := rows.Scan(&l.annotationID, &l.position); err != nil {
			rows.Close()
			return result, fmt.Errorf("failed to scan tagged annotation: %w", err)
		}
		links = append(links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to iterate tagged annotations: %w", err)
	}

	for _, l := range links {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM annotation_tags WHERE annotation_id = ? AND tag_id = ?",
			l.annotationID, oldID,
		)
		if err != nil {
			return result, fmt.Errorf("failed to unlink old tag: %w", err)
		}
		// An annotation that already had the new tag keeps its position.
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO annotation_tags (annotation_id, tag_id, position) VALUES (?, ?, ?)",
			l.annotationID, newID, l.position,
		)
		if err != nil {
			return result, fmt.Errorf("failed to link new tag: %w", err)
		}
	}
	result.Updated = len(links)

	var remaining int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM annotation_tags WHERE tag_id = ?", oldID,
	).Scan(&remaining); err != nil {
		return result, fmt.Errorf("failed to count tag usage: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", oldID); err != nil {
			return result, fmt.Errorf("failed to delete old tag: %w", err)
		}
		result.OldTagDeleted = true
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

func tagIDByName(ctx context.Context, q queryer, name string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx, "SELECT id FROM tags WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", storage.ErrTagNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get tag: %w", err)
	}
	return id, nil
}

// ensureTag returns the id of the named tag, creating it if needed. existed
// reports whether the tag was already there.
func ensureTag(ctx context.Context, q queryer, name string) (id string, existed bool, err error) {
	id, err = tagIDByName(ctx, q, name)
	if err == nil {
		return id, true, nil
	}
	if err != storage.ErrTagNotFound {
		return "", false, err
	}

	id = uuid.New().String()
	if _, err := q.ExecContext(ctx, "INSERT INTO tags (id, name) VALUES (?, ?)", id, name); err != nil {
		return "", false, fmt.Errorf("failed to create tag: %w", err)
	}
	return id, false, nil
}
