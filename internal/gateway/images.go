package gateway

import (
	"context"
	"io"
	"net/http"

	"github.com/mmynk/paladium/internal/models"
)

// ListImages returns all images with their groups and tag statistics.
// Image URLs are resolved against the base URL.
func (c *Client) ListImages(ctx context.Context) ([]models.ImageItem, error) {
	var dtos []imageDTO
	err := c.do(ctx, call{op: "list_images", method: http.MethodGet, path: "/images/"}, &dtos)
	if err != nil {
		return nil, err
	}
	images := make([]models.ImageItem, len(dtos))
	for i, d := range dtos {
		images[i] = d.model(c.ResolveURL)
	}
	return images, nil
}

// UploadImage uploads an image file as multipart form data.
// The returned image has no groups and no tags.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (models.ImageItem, error) {
	var dto imageDTO
	err := c.do(ctx, call{
		op:     "upload_image",
		method: http.MethodPost,
		path:   "/images/upload",
		file:   &upload{name: filename, reader: r},
	}, &dto)
	if err != nil {
		return models.ImageItem{}, err
	}
	return dto.model(c.ResolveURL), nil
}

// AddImageToGroup links an image to a group.
func (c *Client) AddImageToGroup(ctx context.Context, imageID, groupID string) error {
	return c.do(ctx, call{
		op:         "add_image_to_group",
		method:     http.MethodPost,
		path:       "/images/{imageId}/groups/{groupId}",
		pathParams: map[string]string{"imageId": imageID, "groupId": groupID},
	}, nil)
}

// RemoveImageFromGroup unlinks an image from a group.
func (c *Client) RemoveImageFromGroup(ctx context.Context, imageID, groupID string) error {
	return c.do(ctx, call{
		op:         "remove_image_from_group",
		method:     http.MethodDelete,
		path:       "/images/{imageId}/groups/{groupId}",
		pathParams: map[string]string{"imageId": imageID, "groupId": groupID},
	}, nil)
}

// RenameTag renames a tag on every annotation of an image.
func (c *Client) RenameTag(ctx context.Context, imageID, oldName, newName string) error {
	return c.do(ctx, call{
		op:         "rename_tag",
		method:     http.MethodPatch,
		path:       "/images/{imageId}/tags/{tag}",
		pathParams: map[string]string{"imageId": imageID, "tag": oldName},
		body:       renameTagRequest{NewTagName: newName},
	}, nil)
}

// DeleteTag removes a tag from every annotation of an image and returns the
// backend's confirmation message.
func (c *Client) DeleteTag(ctx context.Context, imageID, name string) (string, error) {
	var msg messageDTO
	err := c.do(ctx, call{
		op:         "delete_tag",
		method:     http.MethodDelete,
		path:       "/images/{imageId}/tags/{tag}",
		pathParams: map[string]string{"imageId": imageID, "tag": name},
	}, &msg)
	if err != nil {
		return "", err
	}
	return msg.Message, nil
}

// DeleteImage deletes an image together with its annotations.
func (c *Client) DeleteImage(ctx context.Context, imageID string) error {
	return c.do(ctx, call{
		op:         "delete_image",
		method:     http.MethodDelete,
		path:       "/images/{imageId}",
		pathParams: map[string]string{"imageId": imageID},
	}, nil)
}
