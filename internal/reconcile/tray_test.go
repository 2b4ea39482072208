package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrayApply(t *testing.T) {
	rec, remote := setupReconciler(t)
	tray := NewTray(rec)

	tray.Images.Toggle("img1")
	tray.Images.Toggle("img3")
	tray.ToggleGroup("g1")
	tray.ToggleGroup("g2")

	require.NoError(t, tray.Apply(context.Background()))

	img1, _ := rec.Image("img1")
	img3, _ := rec.Image("img3")
	assert.Subset(t, img1.GroupIDs, []string{"g1", "g2"})
	assert.Subset(t, img3.GroupIDs, []string{"g1", "g2"})
	assert.Contains(t, img1.GroupIDs, "g0")
	assert.Equal(t, 4, remote.count("add_image_to_group"))

	assert.Zero(t, tray.Groups.Len())
	assert.Equal(t, []string{"img1", "img3"}, tray.Images.IDs())
}

func TestTrayApplyWithoutImages(t *testing.T) {
	rec, remote := setupReconciler(t)
	tray := NewTray(rec)
	tray.ToggleGroup("g1")
	before := remote.total()

	require.NoError(t, tray.Apply(context.Background()))

	assert.Equal(t, before, remote.total())
	assert.Equal(t, []string{"g1"}, tray.Groups.IDs())
	_, shown := rec.Notifier().Current()
	assert.False(t, shown)
}

func TestTrayToggleGroup(t *testing.T) {
	rec, _ := setupReconciler(t)
	tray := NewTray(rec)

	tray.ToggleGroup("g1")
	tray.ToggleGroup("g2")
	tray.ToggleGroup("g1")

	assert.Equal(t, []string{"g2"}, tray.Groups.IDs())
}
