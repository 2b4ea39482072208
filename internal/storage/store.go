// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/paladium/internal/auth"
	"github.com/mmynk/paladium/internal/models"
)

// Store defines the persistence operations of the reference backend.
// Lookups return (nil, nil) when nothing matches; the service layer turns
// that into a 404.
type Store interface {
	auth.AccountStorage

	// ListAnnotators returns every annotator in creation order.
	ListAnnotators(ctx context.Context) ([]models.Person, error)

	// CreateGroup persists an empty group. ID and CreatedAt are filled in.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	GetGroupByName(ctx context.Context, name string) (*models.Group, error)
	ListGroups(ctx context.Context) ([]*models.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error

	// GroupOfAnnotator returns the group the annotator belongs to, if any.
	GroupOfAnnotator(ctx context.Context, annotatorID string) (*models.Group, error)
	AddMember(ctx context.Context, groupID, annotatorID string) error
	RemoveMember(ctx context.Context, groupID, annotatorID string) error

	// CreateImage persists an image. ID and CreatedAt are filled in.
	CreateImage(ctx context.Context, image *models.ImageRecord) error
	GetImage(ctx context.Context, imageID string) (*models.ImageRecord, error)
	ListImages(ctx context.Context) ([]*models.ImageRecord, error)
	DeleteImage(ctx context.Context, imageID string) error

	// AddImageToGroup and RemoveImageFromGroup are idempotent.
	AddImageToGroup(ctx context.Context, imageID, groupID string) error
	RemoveImageFromGroup(ctx context.Context, imageID, groupID string) error

	// ImagesForAnnotator returns the images in the annotator's group.
	ImagesForAnnotator(ctx context.Context, annotatorID string) ([]*models.ImageRecord, error)

	// SaveAnnotation stores an annotator's tags for an image, replacing any
	// earlier annotation by the same annotator. It reports whether a new
	// annotation was created.
	SaveAnnotation(ctx context.Context, annotation *models.Annotation) (created bool, err error)

	// TagIDs maps every known tag name to its id.
	TagIDs(ctx context.Context) (map[string]string, error)

	// RemoveTag drops the tag from every annotation of the image and
	// returns how many annotations changed. Returns ErrTagNotFound when no
	// such tag exists.
	RemoveTag(ctx context.Context, imageID, tag string) (int, error)

	// RenameTag replaces oldName with newName in every annotation of the
	// image, merging into newName when it already exists. Returns
	// ErrTagNotFound when oldName does not exist.
	RenameTag(ctx context.Context, imageID, oldName, newName string) (TagRename, error)

	// Close releases any resources held by the store.
	Close() error
}

// TagRename reports the outcome of Store.RenameTag.
type TagRename struct {
	Updated       int
	Merged        bool
	OldTagDeleted bool
}
