package service

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/mmynk/paladium/internal/models"
)

// flexID accepts an id sent either as a JSON string or a JSON number.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string          `json:"token"`
	Type  models.UserType `json:"type"`
}

type userResponse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Email string          `json:"email"`
	Type  models.UserType `json:"type"`
}

type personResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newPersonResponse(p models.Person) personResponse {
	return personResponse{ID: p.ID, Name: p.Name, Email: p.Email}
}

type groupResponse struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Members []personResponse `json:"members"`
}

func newGroupResponse(g *models.Group) groupResponse {
	out := groupResponse{ID: g.ID, Name: g.Name, Members: make([]personResponse, 0, len(g.Members))}
	for _, m := range g.Members {
		out.Members = append(out.Members, newPersonResponse(m))
	}
	return out
}

type groupRefResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tagResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type imageResponse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	URL             string             `json:"url"`
	Tags            []tagResponse      `json:"tags"`
	Groups          []groupRefResponse `json:"groups"`
	TotalAnnotators int                `json:"total_annotators"`
	HasConflict     bool               `json:"has_conflict"`
	DateAdded       string             `json:"date_added"`
}

type annotatorImageResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Tags         []string `json:"tags"`
	IsClassified bool     `json:"is_classified"`
	ClassifiedAt *string  `json:"classified_at"`
	DateAdded    string   `json:"date_added"`
}

type statsResponse struct {
	AnnotatorID        string  `json:"annotator_id"`
	TotalImages        int     `json:"total_images"`
	ClassifiedImages   int     `json:"classified_images"`
	RemainingImages    int     `json:"remaining_images"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

func timestamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
