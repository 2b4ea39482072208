package cli

import (
	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/models"
)

type personOutput struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newPeopleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "people",
		Short: "Annotator commands",
	}
	cmd.AddCommand(newPeopleListCmd(app))
	cmd.AddCommand(newPeopleCreateCmd(app))
	return cmd
}

func newPeopleListCmd(app *App) *cobra.Command {
	var available bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List annotators",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			people := rec.People()
			if available {
				people = rec.AvailablePeople()
			}
			return writePeople(cmd, app, people)
		},
	}

	cmd.Flags().BoolVar(&available, "available", false, "Only list people who are not in any group")
	return cmd
}

func newPeopleCreateCmd(app *App) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an annotator",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			person, err := rec.CreatePerson(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			return writePeople(cmd, app, []models.Person{person})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	return cmd
}

func writePeople(cmd *cobra.Command, app *App, people []models.Person) error {
	if app.JSON {
		out := make([]personOutput, len(people))
		for i, p := range people {
			out[i] = personOutput{ID: p.ID, Name: p.Name, Email: p.Email}
		}
		return app.writeJSON(cmd, out)
	}
	writeTable(cmd.OutOrStdout(), []string{"ID", "Name", "Email"}, personRows(people), "No people")
	return nil
}
