package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/models"
)

type annotatorImageOutput struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	Classified bool     `json:"classified"`
}

type statsOutput struct {
	Total      int     `json:"total"`
	Classified int     `json:"classified"`
	Remaining  int     `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

func newAnnotateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Annotator commands: classify the images of your group",
	}
	cmd.AddCommand(newAnnotateListCmd(app))
	cmd.AddCommand(newAnnotateSubmitCmd(app))
	cmd.AddCommand(newAnnotateStatsCmd(app))
	return cmd
}

func newAnnotateListCmd(app *App) *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the images assigned to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser(cmd.Context(), models.UserTypeAnnotator)
			if err != nil {
				return err
			}
			images, err := app.client.AnnotatorImages(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			var out []annotatorImageOutput
			var rows [][]string
			for _, image := range images {
				if pending && image.Classified {
					continue
				}
				out = append(out, annotatorImageOutput{
					ID:         image.ID,
					Name:       image.Name,
					URL:        image.URL,
					Tags:       image.Tags,
					Classified: image.Classified,
				})
				rows = append(rows, []string{image.ID, image.Name, strings.Join(image.Tags, ", "), yesNo(image.Classified)})
			}
			if app.JSON {
				if out == nil {
					out = []annotatorImageOutput{}
				}
				return app.writeJSON(cmd, out)
			}
			writeTable(cmd.OutOrStdout(), []string{"ID", "Name", "Your tags", "Done"}, rows, "No images assigned")
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "Only list images you have not classified")
	return cmd
}

func newAnnotateSubmitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <image-id> <tag>...",
		Short: "Classify an image, replacing your earlier tags",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser(cmd.Context(), models.UserTypeAnnotator)
			if err != nil {
				return err
			}
			if err := app.client.SubmitAnnotation(cmd.Context(), user.ID, args[0], args[1:]); err != nil {
				return err
			}
			app.notifier.Success(fmt.Sprintf("Image %s classified", args[0]))
			return nil
		},
	}
}

func newAnnotateStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your classification progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser(cmd.Context(), models.UserTypeAnnotator)
			if err != nil {
				return err
			}
			stats, err := app.client.AnnotatorStats(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			if app.JSON {
				return app.writeJSON(cmd, statsOutput{
					Total:      stats.Total,
					Classified: stats.Classified,
					Remaining:  stats.Remaining,
					Percentage: stats.Percentage,
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"Total", "Classified", "Remaining", "Progress"}, [][]string{{
				strconv.Itoa(stats.Total),
				strconv.Itoa(stats.Classified),
				strconv.Itoa(stats.Remaining),
				strconv.FormatFloat(stats.Percentage, 'f', 2, 64) + "%",
			}}, "")
			return nil
		},
	}
}
