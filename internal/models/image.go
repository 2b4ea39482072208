package models

import "strings"

// Tag is a tag attached to an image together with its agreement statistics.
// Tag names are unique per image, compared case-insensitively.
type Tag struct {
	Name string

	// Percentage is the share of annotators who applied this tag (0-100).
	Percentage float64

	// Count is the number of annotators who applied this tag.
	Count int
}

// ImageItem is an image as seen by the admin client.
type ImageItem struct {
	ID string

	// URL is absolute: the client resolves the backend's relative path
	// against the configured base before storing it here.
	URL string

	// Alt is the image's display name (the uploaded file name).
	Alt string

	// GroupIDs is the set of groups the image is assigned to.
	// Order is irrelevant and entries are unique.
	GroupIDs []string

	// Tags are ordered by Count, most popular first.
	Tags []Tag

	TotalAnnotators int
	HasConflict     bool
}

// InGroup reports whether the image is assigned to the group.
func (i ImageItem) InGroup(groupID string) bool {
	for _, id := range i.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// TagNames returns the names of the image's tags in order.
func (i ImageItem) TagNames() []string {
	names := make([]string, len(i.Tags))
	for idx, t := range i.Tags {
		names[idx] = t.Name
	}
	return names
}

// FindTag returns the index of the tag with exactly the given name, or -1.
func (i ImageItem) FindTag(name string) int {
	for idx, t := range i.Tags {
		if t.Name == name {
			return idx
		}
	}
	return -1
}

// Clone returns a copy of the image that shares no memory with i.
func (i ImageItem) Clone() ImageItem {
	out := i
	if i.GroupIDs != nil {
		out.GroupIDs = append([]string(nil), i.GroupIDs...)
	}
	if i.Tags != nil {
		out.Tags = append([]Tag(nil), i.Tags...)
	}
	return out
}

// NormalizeTag returns the canonical form used to compare tag names.
func NormalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ImageRecord is the backend's stored view of an image.
type ImageRecord struct {
	ID        string
	Name      string
	URL       string
	CreatedAt int64

	// Groups carries group ids and names only; members are not loaded.
	Groups []Group

	// Annotations holds one tag list per annotator who classified the image.
	Annotations []Annotation
}

// Annotation is one annotator's classification of one image.
type Annotation struct {
	AnnotatorID string
	ImageID     string

	// Tags are stored lower-cased and deduplicated.
	Tags []string

	CreatedAt int64
}

// AnnotatorImage is an image as seen by one annotator, together with that
// annotator's own classification.
type AnnotatorImage struct {
	ID   string
	Name string
	URL  string

	// Tags are the annotator's own tags, empty when unclassified.
	Tags       []string
	Classified bool
}

// AnnotatorStats is an annotator's progress through their images.
type AnnotatorStats struct {
	AnnotatorID string
	Total       int
	Classified  int
	Remaining   int

	// Percentage is rounded to two decimals.
	Percentage float64
}
