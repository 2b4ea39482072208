package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/reconcile"
	"github.com/mmynk/paladium/internal/tageditor"
)

func newTagsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag commands",
	}
	cmd.AddCommand(newTagsRenameCmd(app))
	cmd.AddCommand(newTagsRemoveCmd(app))
	return cmd
}

// editor opens a tag editor on the image's current tags.
func editor(app *App, rec *reconcile.Reconciler, imageID string) (*tageditor.Editor, error) {
	image, ok := rec.Image(imageID)
	if !ok {
		return nil, fmt.Errorf("image %s: %w", imageID, reconcile.ErrImageNotFound)
	}
	return tageditor.New(image.ID, image.TagNames(), app.client,
		tageditor.WithSnapshot(rec),
		tageditor.WithNotifier(app.notifier),
		tageditor.WithLogger(app.logger),
	), nil
}

func newTagsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <image-id> <tag> <new-name>",
		Short: "Rename a tag on every annotation of an image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			ed, err := editor(app, rec, args[0])
			if err != nil {
				return err
			}
			if err := ed.StartEditing(models.NormalizeTag(args[1])); err != nil {
				return err
			}
			if err := ed.SetDraft(args[2]); err != nil {
				return err
			}
			return ed.Save(cmd.Context())
		},
	}
}

func newTagsRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <image-id> <tag>",
		Short: "Remove a tag from every annotation of an image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			ed, err := editor(app, rec, args[0])
			if err != nil {
				return err
			}
			tag := models.NormalizeTag(args[1])
			if err := ed.RequestRemoval(tag); err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Remove tag %q from every annotation of this image? [y/N] ", tag)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					ed.CancelRemoval()
					fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Cancelled"))
					return nil
				}
			}

			defer ed.Wait()
			return ed.ConfirmRemoval(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
