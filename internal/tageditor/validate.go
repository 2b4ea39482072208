package tageditor

import "strings"

// ValidationError is a local rejection of a draft. Its text is shown to the
// user as is.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrEmptyTag     ValidationError = "Tag name cannot be empty"
	ErrDuplicateTag ValidationError = "Tag already exists"
)

// IsDuplicate reports whether draft collides, ignoring case, with any tag other
// than the one being edited.
func IsDuplicate(draft, original string, tags []string) bool {
	lower := strings.ToLower(strings.TrimSpace(draft))
	if lower == strings.ToLower(original) {
		return false
	}
	for _, t := range tags {
		if strings.ToLower(t) == lower {
			return true
		}
	}
	return false
}

// Validate checks a draft for the tag named original against the image's tags.
func Validate(draft, original string, tags []string) error {
	if strings.TrimSpace(draft) == "" {
		return ErrEmptyTag
	}
	if IsDuplicate(draft, original, tags) {
		return ErrDuplicateTag
	}
	return nil
}
