package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/paladium/internal/models"
)

// CreateGroup persists a new, empty group.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)",
		group.ID, group.Name, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	group.Members = []models.Person{}
	return nil
}

// GetGroup retrieves a group with its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.getGroup(ctx, "SELECT id, name, created_at FROM groups WHERE id = ?", groupID)
}

// GetGroupByName retrieves a group by its exact name.
func (s *SQLiteStore) GetGroupByName(ctx context.Context, name string) (*models.Group, error) {
	return s.getGroup(ctx, "SELECT id, name, created_at FROM groups WHERE name = ?", name)
}

// GroupOfAnnotator returns the group the annotator belongs to.
func (s *SQLiteStore) GroupOfAnnotator(ctx context.Context, annotatorID string) (*models.Group, error) {
	return s.getGroup(ctx, `
		SELECT g.id, g.name, g.created_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.annotator_id = ?
	`, annotatorID)
}

func (s *SQLiteStore) getGroup(ctx context.Context, query string, arg string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Group not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	members, err := s.members(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	group.Members = members[group.ID]
	if group.Members == nil {
		group.Members = []models.Person{}
	}

	return group, nil
}

// ListGroups retrieves all groups with their members, oldest first.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM groups ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*models.Group{}
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	rows.Close()

	members, err := s.members(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		group.Members = members[group.ID]
		if group.Members == nil {
			group.Members = []models.Person{}
		}
	}

	return groups, nil
}

// members returns group members keyed by group id, in the order they were
// added. An empty groupID loads the members of every group.
func (s *SQLiteStore) members(ctx context.Context, groupID string) (map[string][]models.Person, error) {
	query := `
		SELECT m.group_id, a.id, a.name, a.email
		FROM group_members m
		JOIN accounts a ON a.id = m.annotator_id
	`
	var args []any
	if groupID != "" {
		query += " WHERE m.group_id = ?"
		args = append(args, groupID)
	}
	query += " ORDER BY m.added_at, m.rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Person)
	for rows.Next() {
		var gid string
		var p models.Person
		if err := rows.Scan(&gid, &p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		out[gid] = append(out[gid], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return out, nil
}

// DeleteGroup removes a group. Memberships and image assignments go with it.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("group not found: %s", groupID)
	}
	return nil
}

// AddMember puts an annotator into a group. An annotator can belong to one
// group only; the unique constraint rejects a second membership.
func (s *SQLiteStore) AddMember(ctx context.Context, groupID, annotatorID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO group_members (group_id, annotator_id, added_at) VALUES (?, ?, ?)",
		groupID, annotatorID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember takes an annotator out of a group.
func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, annotatorID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND annotator_id = ?",
		groupID, annotatorID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}
