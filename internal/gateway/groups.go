package gateway

import (
	"context"
	"net/http"

	"github.com/mmynk/paladium/internal/models"
)

// ListGroups returns all groups with their members.
func (c *Client) ListGroups(ctx context.Context) ([]models.Group, error) {
	var dtos []groupDTO
	err := c.do(ctx, call{op: "list_groups", method: http.MethodGet, path: "/groups/"}, &dtos)
	if err != nil {
		return nil, err
	}
	groups := make([]models.Group, len(dtos))
	for i, d := range dtos {
		groups[i] = d.model()
	}
	return groups, nil
}

// CreateGroup creates an empty group. The name travels as a query parameter.
func (c *Client) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	var dto groupDTO
	err := c.do(ctx, call{
		op:     "create_group",
		method: http.MethodPost,
		path:   "/groups/",
		query:  map[string]string{"name": name},
	}, &dto)
	if err != nil {
		return models.Group{}, err
	}
	return dto.model(), nil
}

// DeleteGroup deletes a group.
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, call{
		op:         "delete_group",
		method:     http.MethodDelete,
		path:       "/groups/{groupId}",
		pathParams: map[string]string{"groupId": groupID},
	}, nil)
}

// AddMember adds an annotator to a group.
func (c *Client) AddMember(ctx context.Context, groupID, personID string) error {
	return c.do(ctx, call{
		op:         "add_member",
		method:     http.MethodPost,
		path:       "/groups/{groupId}/members",
		pathParams: map[string]string{"groupId": groupID},
		body:       addMemberRequest{AnnotatorID: wireID(personID)},
	}, nil)
}

// RemoveMember removes an annotator from a group.
func (c *Client) RemoveMember(ctx context.Context, groupID, personID string) error {
	return c.do(ctx, call{
		op:         "remove_member",
		method:     http.MethodDelete,
		path:       "/groups/{groupId}/members/{memberId}",
		pathParams: map[string]string{"groupId": groupID, "memberId": personID},
	}, nil)
}
