package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/calculator"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/reconcile"
)

type tagOutput struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type imageOutput struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	URL             string      `json:"url"`
	Groups          []string    `json:"groups"`
	Tags            []tagOutput `json:"tags"`
	TotalAnnotators int         `json:"total_annotators"`
	HasConflict     bool        `json:"has_conflict"`
}

func newImagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Image commands",
	}
	cmd.AddCommand(newImagesListCmd(app))
	cmd.AddCommand(newImagesUploadCmd(app))
	cmd.AddCommand(newImagesAssignCmd(app))
	cmd.AddCommand(newImagesUnassignCmd(app))
	cmd.AddCommand(newImagesDeleteCmd(app))
	return cmd
}

func newImagesListCmd(app *App) *cobra.Command {
	var groupID string
	var conflicts bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images with their groups and tag agreement",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			var images []models.ImageItem
			for _, image := range rec.Images() {
				if groupID != "" && !image.InGroup(groupID) {
					continue
				}
				if conflicts && !image.HasConflict {
					continue
				}
				images = append(images, image)
			}
			return writeImages(cmd, app, rec, images)
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Only list images in this group")
	cmd.Flags().BoolVar(&conflicts, "conflicts", false, "Only list images whose annotators disagree")
	return cmd
}

func newImagesUploadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			var uploaded []models.ImageItem
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				image, err := rec.UploadImage(cmd.Context(), filepath.Base(path), f)
				f.Close()
				if err != nil {
					return err
				}
				uploaded = append(uploaded, image)
			}
			return writeImages(cmd, app, rec, uploaded)
		},
	}
}

func newImagesAssignCmd(app *App) *cobra.Command {
	var groupIDs []string

	cmd := &cobra.Command{
		Use:   "assign --group <group-id>... <image-id>...",
		Short: "Add images to one or more groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer rec.Wait()

			tray := reconcile.NewTray(rec)
			tray.Images.SelectAll(args)
			for _, id := range groupIDs {
				if !tray.Groups.Has(id) {
					tray.ToggleGroup(id)
				}
			}
			return tray.Apply(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVar(&groupIDs, "group", nil, "Group to add the images to (repeatable)")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func newImagesUnassignCmd(app *App) *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "unassign --group <group-id> <image-id>...",
		Short: "Remove images from a group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer rec.Wait()
			rec.RemoveImagesFromGroup(cmd.Context(), args, groupID)
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Group to remove the images from")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func newImagesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>",
		Short: "Delete an image with its annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireUser(cmd.Context(), models.UserTypeAdmin); err != nil {
				return err
			}
			if err := app.client.DeleteImage(cmd.Context(), args[0]); err != nil {
				return err
			}
			app.notifier.Success("Image deleted")
			return nil
		},
	}
}

func writeImages(cmd *cobra.Command, app *App, rec *reconcile.Reconciler, images []models.ImageItem) error {
	groupName := func(id string) string {
		if g, ok := rec.Group(id); ok {
			return g.Name
		}
		return id
	}

	if app.JSON {
		out := make([]imageOutput, len(images))
		for i, image := range images {
			o := imageOutput{
				ID:              image.ID,
				Name:            image.Alt,
				URL:             image.URL,
				Groups:          make([]string, len(image.GroupIDs)),
				Tags:            make([]tagOutput, len(image.Tags)),
				TotalAnnotators: image.TotalAnnotators,
				HasConflict:     image.HasConflict,
			}
			copy(o.Groups, image.GroupIDs)
			for j, t := range image.Tags {
				o.Tags[j] = tagOutput{Name: t.Name, Count: t.Count, Percentage: t.Percentage}
			}
			out[i] = o
		}
		return app.writeJSON(cmd, out)
	}

	rows := make([][]string, len(images))
	for i, image := range images {
		groups := make([]string, len(image.GroupIDs))
		for j, id := range image.GroupIDs {
			groups[j] = groupName(id)
		}
		rows[i] = []string{
			image.ID,
			image.Alt,
			strings.Join(groups, ", "),
			tagSummary(image, calculator.ConflictThreshold),
			strconv.Itoa(image.TotalAnnotators),
			yesNo(image.HasConflict),
		}
	}
	writeTable(cmd.OutOrStdout(), []string{"ID", "Name", "Groups", "Tags", "Annotators", "Conflict"}, rows, "No images")
	if len(images) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("%d image(s)", len(images))))
	}
	return nil
}
