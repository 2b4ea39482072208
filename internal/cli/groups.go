package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mmynk/paladium/internal/drag"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/reconcile"
)

type groupOutput struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Members []personOutput `json:"members"`
}

func newGroupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Group commands",
	}
	cmd.AddCommand(newGroupsListCmd(app))
	cmd.AddCommand(newGroupsCreateCmd(app))
	cmd.AddCommand(newGroupsDeleteCmd(app))
	cmd.AddCommand(newGroupsAssignCmd(app))
	cmd.AddCommand(newGroupsUnassignCmd(app))
	return cmd
}

func newGroupsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List groups with their members",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			return writeGroups(cmd, app, rec.Groups())
		},
	}
}

func newGroupsCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			group, err := rec.CreateGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeGroups(cmd, app, []models.Group{group})
		},
	}
}

func newGroupsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group-id>",
		Short: "Delete a group; its members become available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer rec.Wait()
			return rec.DeleteGroup(cmd.Context(), args[0])
		},
	}
}

func newGroupsAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <group-id> <person-id>",
		Short: "Put a person into a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer rec.Wait()
			return dropOnGroup(cmd.Context(), app, rec, args[1], args[0])
		},
	}
}

func newGroupsUnassignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <group-id> <person-id>",
		Short: "Take a person out of a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.reconciler(cmd.Context())
			if err != nil {
				return err
			}
			defer rec.Wait()
			rec.RemoveMember(cmd.Context(), args[0], args[1])
			return nil
		},
	}
}

// Card geometry of the group board: available people in the left column,
// one column per group to its right.
const (
	cardWidth  = 240
	cardHeight = 64
	cardGap    = 16
)

var errMissedDrop = errors.New("drop did not land on the group")

// dropOnGroup assigns a person by dragging their card from the available
// column onto the group's card, the same path a pointer-driven board takes.
// The group column starts past the activation distance so every drop travels
// far enough to start a drag.
func dropOnGroup(ctx context.Context, app *App, rec *reconcile.Reconciler, personID, groupID string) error {
	ctrl := drag.New(rec.AssignPerson,
		drag.WithActivationDistance(app.cfg.Drag.ActivationDistance),
		drag.WithLogger(app.logger),
	)

	origin := cardWidth + cardGap + app.cfg.Drag.ActivationDistance
	target := -1
	for i, g := range rec.Groups() {
		rect := drag.Rect{
			X:      origin + float64(i)*(cardWidth+cardGap),
			Width:  cardWidth,
			Height: cardHeight,
		}
		ctrl.RegisterTarget(g.ID, rect)
		if g.ID == groupID {
			target = i
		}
	}
	if target < 0 {
		return fmt.Errorf("group %s: %w", groupID, reconcile.ErrGroupNotFound)
	}

	card := drag.Rect{Width: cardWidth, Height: cardHeight}
	start := drag.Point{X: cardWidth / 2, Y: cardHeight / 2}
	end := drag.Point{X: start.X + origin + float64(target)*(cardWidth+cardGap), Y: start.Y}

	ctrl.Press(personID, start, card)
	ctrl.Move(end)
	_, dropped, err := ctrl.Release(ctx, end)
	if err != nil {
		return err
	}
	if !dropped {
		return errMissedDrop
	}
	return nil
}

func writeGroups(cmd *cobra.Command, app *App, groups []models.Group) error {
	if app.JSON {
		out := make([]groupOutput, len(groups))
		for i, g := range groups {
			members := make([]personOutput, len(g.Members))
			for j, m := range g.Members {
				members[j] = personOutput{ID: m.ID, Name: m.Name, Email: m.Email}
			}
			out[i] = groupOutput{ID: g.ID, Name: g.Name, Members: members}
		}
		return app.writeJSON(cmd, out)
	}

	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{g.ID, g.Name, strconv.Itoa(len(g.Members)), memberNames(g.Members)}
	}
	writeTable(cmd.OutOrStdout(), []string{"ID", "Name", "Size", "Members"}, rows, "No groups")
	return nil
}
