package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is a local rejection. Its text is the message shown to the
// user, and it never reaches the network.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrAlreadyAssigned     ValidationError = "This person is already assigned to a group"
	ErrEmptyGroupName      ValidationError = "Group name cannot be empty"
	ErrMissingPersonFields ValidationError = "Name and email are required"
	ErrInvalidEmail        ValidationError = "Please enter a valid email address"
	ErrEmailTaken          ValidationError = "This email address is already registered."
)

var (
	ErrPersonNotFound = errors.New("person not found")
	ErrGroupNotFound  = errors.New("group not found")
	ErrImageNotFound  = errors.New("image not found")
)

// PairError is the failure of one (image, group) link in a batch.
type PairError struct {
	ImageID string
	GroupID string
	Err     error
}

func (e PairError) Error() string {
	return fmt.Sprintf("image %s -> group %s: %v", e.ImageID, e.GroupID, e.Err)
}

func (e PairError) Unwrap() error {
	return e.Err
}

// BatchError collects the failed pairs of a batch whose other pairs may have
// succeeded.
type BatchError struct {
	Op       Operation
	Total    int
	Failures []PairError
}

func (e *BatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s: %d of %d requests failed: %s", e.Op, len(e.Failures), e.Total, strings.Join(msgs, "; "))
}

// Unwrap exposes every pair error to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
