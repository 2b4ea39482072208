package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmynk/paladium/internal/models"
)

// wireID accepts both JSON numbers and strings and always holds a string.
// Numeric ids are written back as numbers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = wireID(n.String())
	return nil
}

func (id wireID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type personDTO struct {
	ID    wireID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p personDTO) model() models.Person {
	return models.Person{ID: string(p.ID), Name: p.Name, Email: p.Email}
}

type groupDTO struct {
	ID        wireID      `json:"id"`
	Name      string      `json:"name"`
	Members   []personDTO `json:"members"`
	CreatedAt int64       `json:"created_at,omitempty"`
}

func (g groupDTO) model() models.Group {
	out := models.Group{
		ID:        string(g.ID),
		Name:      g.Name,
		Members:   make([]models.Person, 0, len(g.Members)),
		CreatedAt: g.CreatedAt,
	}
	for _, m := range g.Members {
		out.Members = append(out.Members, m.model())
	}
	return out
}

type groupRefDTO struct {
	ID   wireID `json:"id"`
	Name string `json:"name"`
}

type tagDTO struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

type imageDTO struct {
	ID              wireID        `json:"id"`
	Name            string        `json:"name"`
	URL             string        `json:"url"`
	Groups          []groupRefDTO `json:"groups"`
	Tags            []tagDTO      `json:"tags"`
	TotalAnnotators int           `json:"total_annotators"`
	HasConflict     bool          `json:"has_conflict"`
}

func (i imageDTO) model(resolve func(string) string) models.ImageItem {
	out := models.ImageItem{
		ID:              string(i.ID),
		URL:             resolve(i.URL),
		Alt:             i.Name,
		GroupIDs:        make([]string, 0, len(i.Groups)),
		Tags:            make([]models.Tag, 0, len(i.Tags)),
		TotalAnnotators: i.TotalAnnotators,
		HasConflict:     i.HasConflict,
	}
	seen := make(map[string]bool, len(i.Groups))
	for _, g := range i.Groups {
		id := string(g.ID)
		if seen[id] {
			continue
		}
		seen[id] = true
		out.GroupIDs = append(out.GroupIDs, id)
	}
	for _, t := range i.Tags {
		out.Tags = append(out.Tags, models.Tag{Name: t.Name, Percentage: t.Percentage, Count: t.Count})
	}
	return out
}

type userDTO struct {
	ID    wireID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

type tokenDTO struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

type messageDTO struct {
	Message string `json:"message"`
}

type createPersonRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type addMemberRequest struct {
	AnnotatorID wireID `json:"annotator_id"`
}

type renameTagRequest struct {
	NewTagName string `json:"new_tag_name"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type annotationRequest struct {
	ImageID  wireID   `json:"image_id"`
	TagNames []string `json:"tag_names"`
}

type annotatorImageDTO struct {
	ID           wireID   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Tags         []string `json:"tags"`
	IsClassified bool     `json:"is_classified"`
}

type statsDTO struct {
	AnnotatorID        wireID  `json:"annotator_id"`
	TotalImages        int     `json:"total_images"`
	ClassifiedImages   int     `json:"classified_images"`
	RemainingImages    int     `json:"remaining_images"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// ResolveURL resolves a backend-relative path against base.
// Absolute URLs are returned unchanged.
func ResolveURL(base, rel string) string {
	if rel == "" {
		return ""
	}
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") {
		return rel
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(rel, "/")
}
