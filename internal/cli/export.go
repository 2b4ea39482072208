package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/export"
)

func newExportCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the tag report as an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			names := make(map[string]string)
			for _, g := range rec.Groups() {
				names[g.ID] = g.Name
			}
			images := rec.Images()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteTagReport(f, images, names); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", out, err)
			}
			app.notifier.Success(fmt.Sprintf("Exported %d image(s) to %s", len(images), out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "tags.xlsx", "Output file")
	return cmd
}
