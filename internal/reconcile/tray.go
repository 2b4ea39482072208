package reconcile

import (
	"context"

	"github.com/mmynk/paladium/internal/selection"
)

// Tray batches image-to-group assignment: a selection of images and a set of
// checked groups, applied together.
type Tray struct {
	rec *Reconciler

	// Images is the image selection.
	Images *selection.Set

	// Groups is the set of checked groups. It is toggled independently of the
	// image selection.
	Groups *selection.Set
}

// NewTray creates an empty tray over rec.
func NewTray(rec *Reconciler) *Tray {
	return &Tray{
		rec:    rec,
		Images: selection.New(),
		Groups: selection.New(),
	}
}

// ToggleGroup checks or unchecks a group.
func (t *Tray) ToggleGroup(groupID string) {
	t.Groups.Toggle(groupID)
}

// Apply assigns every selected image to every checked group and unchecks the
// groups. The image selection is kept. With no selected images it does
// nothing.
func (t *Tray) Apply(ctx context.Context) error {
	imageIDs := t.Images.IDs()
	if len(imageIDs) == 0 {
		return nil
	}
	err := t.rec.AssignImagesToGroups(ctx, imageIDs, t.Groups.IDs())
	t.Groups.Clear()
	return err
}
