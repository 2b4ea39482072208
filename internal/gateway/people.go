package gateway

import (
	"context"
	"net/http"

	"github.com/mmynk/paladium/internal/models"
)

// ListPeople returns all annotators.
func (c *Client) ListPeople(ctx context.Context) ([]models.Person, error) {
	var dtos []personDTO
	err := c.do(ctx, call{op: "list_people", method: http.MethodGet, path: "/annotators/"}, &dtos)
	if err != nil {
		return nil, err
	}
	people := make([]models.Person, len(dtos))
	for i, d := range dtos {
		people[i] = d.model()
	}
	return people, nil
}

// CreatePerson registers a new annotator. A duplicate email yields an error
// matching ErrConflict.
func (c *Client) CreatePerson(ctx context.Context, name, email, password string) (models.Person, error) {
	var dto personDTO
	err := c.do(ctx, call{
		op:     "create_person",
		method: http.MethodPost,
		path:   "/annotators/",
		body:   createPersonRequest{Name: name, Email: email, Password: password},
	}, &dto)
	if err != nil {
		return models.Person{}, err
	}
	return dto.model(), nil
}
