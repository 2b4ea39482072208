package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/models"
)

type userOutput struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Email string          `json:"email"`
	Type  models.UserType `json:"type"`
}

func writeUser(cmd *cobra.Command, app *App, user models.User) error {
	if app.JSON {
		return app.writeJSON(cmd, userOutput{ID: user.ID, Name: user.Name, Email: user.Email, Type: user.Type})
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s) id=%s\n", name, user.Email, user.Type, user.ID)
	return nil
}

func parseUserType(s string) (models.UserType, error) {
	t := models.UserType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown user type %q (admin|annotator)", s)
	}
	return t, nil
}

func newLoginCmd(app *App) *cobra.Command {
	var userType, email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseUserType(userType)
			if err != nil {
				return err
			}
			user, err := app.sessions.Login(cmd.Context(), t, email, password)
			if err != nil {
				return err
			}
			app.notifier.Success("Signed in as " + user.Email)
			return writeUser(cmd, app, user)
		},
	}

	cmd.Flags().StringVar(&userType, "type", string(models.UserTypeAdmin), "User type (admin|annotator)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", envOr("PALADIUM_PASSWORD", ""), "Password (default $PALADIUM_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRegisterCmd(app *App) *cobra.Command {
	var userType, email, password, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseUserType(userType)
			if err != nil {
				return err
			}
			user, err := app.sessions.Register(cmd.Context(), t, email, password, name)
			if err != nil {
				return err
			}
			app.notifier.Success("Registered " + user.Email)
			return writeUser(cmd, app, user)
		},
	}

	cmd.Flags().StringVar(&userType, "type", string(models.UserTypeAdmin), "User type (admin|annotator)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", envOr("PALADIUM_PASSWORD", ""), "Password (default $PALADIUM_PASSWORD)")
	cmd.Flags().StringVar(&name, "name", "", "Display name (annotators only)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.sessions.Logout(cmd.Context()); err != nil {
				return err
			}
			app.notifier.Success("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := app.requireUser(cmd.Context(), "")
			if err != nil {
				return err
			}
			return writeUser(cmd, app, user)
		},
	}
}

func newPasswdCmd(app *App) *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in annotator's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if newPassword == "" {
				return errors.New("new password cannot be empty")
			}
			if _, err := app.requireUser(cmd.Context(), models.UserTypeAnnotator); err != nil {
				return err
			}
			if err := app.client.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return err
			}
			app.notifier.Success("Password changed successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}
