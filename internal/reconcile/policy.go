package reconcile

// MutationPolicy decides when a mutation touches local state relative to its
// remote call.
type MutationPolicy int

const (
	// Optimistic mutations are applied locally first; the remote call is fired
	// without waiting for it. Failures are logged and, when rollback is
	// enabled, compensated.
	Optimistic MutationPolicy = iota

	// Gated mutations wait for the remote call and only then touch local state.
	// Failures are reported to the user and leave local state untouched.
	Gated
)

func (p MutationPolicy) String() string {
	switch p {
	case Optimistic:
		return "optimistic"
	case Gated:
		return "gated"
	}
	return "unknown"
}

// Operation names a mutation the reconciler (or tag editor) performs.
type Operation string

const (
	OpAssignPerson     Operation = "assign_person"
	OpRemoveMember     Operation = "remove_member"
	OpDeleteGroup      Operation = "delete_group"
	OpAssignImages     Operation = "assign_images"
	OpRemoveImages     Operation = "remove_images"
	OpCreateGroup      Operation = "create_group"
	OpCreatePerson     Operation = "create_person"
	OpUploadImage      Operation = "upload_image"
	OpRenameTag        Operation = "rename_tag"
	OpRemoveTag        Operation = "remove_tag"
	OpSubmitAnnotation Operation = "submit_annotation"
)

var policies = map[Operation]MutationPolicy{
	OpAssignPerson:     Optimistic,
	OpRemoveMember:     Optimistic,
	OpDeleteGroup:      Optimistic,
	OpAssignImages:     Optimistic,
	OpRemoveImages:     Optimistic,
	OpRemoveTag:        Optimistic,
	OpCreateGroup:      Gated,
	OpCreatePerson:     Gated,
	OpUploadImage:      Gated,
	OpRenameTag:        Gated,
	OpSubmitAnnotation: Gated,
}

// PolicyFor returns the policy registered for op. Unknown operations are
// treated as Gated.
func PolicyFor(op Operation) MutationPolicy {
	if p, ok := policies[op]; ok {
		return p
	}
	return Gated
}
