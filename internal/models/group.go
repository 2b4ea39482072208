package models

// Person is an annotator as seen by the admin client.
// People are created through admin registration and never edited afterwards.
type Person struct {
	// ID is the canonical identifier assigned by the backend.
	ID string

	// Name is the display name of the annotator.
	Name string

	// Email is the annotator's login address (unique).
	Email string
}

// Group is a named set of annotators.
//
// The member list is ordered by assignment time. A person belongs to at most
// one group at any time; the reconciler enforces this on the client.
type Group struct {
	// ID is the canonical identifier assigned by the backend.
	ID string

	// Name is the display name of the group (e.g., "Red team").
	Name string

	// Members are the annotators assigned to this group, in assignment order.
	Members []Person

	// CreatedAt is the Unix timestamp when the group was created.
	// Zero when the backend does not report it.
	CreatedAt int64
}

// HasMember reports whether the person with the given id is in the group.
func (g Group) HasMember(personID string) bool {
	for _, m := range g.Members {
		if m.ID == personID {
			return true
		}
	}
	return false
}

// Clone returns a copy of the group that shares no memory with g.
func (g Group) Clone() Group {
	out := g
	if g.Members != nil {
		out.Members = make([]Person, len(g.Members))
		copy(out.Members, g.Members)
	}
	return out
}
