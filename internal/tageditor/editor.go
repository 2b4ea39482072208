// Package tageditor implements inline editing of an image's tags.
//
// At most one tag is edited at a time. A rename is gated: the backend is asked
// first and local state only changes once it agrees. A removal goes through a
// confirmation step, then is applied locally at once while the remote delete
// runs in the background.
package tageditor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mmynk/paladium/internal/gateway"
	"github.com/mmynk/paladium/internal/notify"
	"github.com/mmynk/paladium/internal/reconcile"
)

// State is the editor's position in its lifecycle.
type State int

const (
	Idle State = iota
	Editing
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	}
	return "unknown"
}

var (
	ErrBusy             = errors.New("a rename is being saved")
	ErrNotEditing       = errors.New("no tag is being edited")
	ErrTagNotFound      = errors.New("tag not found")
	ErrNoPendingRemoval = errors.New("no tag is pending removal")
)

// Remote is the part of the backend API the editor calls.
// *gateway.Client implements it.
type Remote interface {
	RenameTag(ctx context.Context, imageID, oldName, newName string) error
	DeleteTag(ctx context.Context, imageID, name string) (string, error)
}

var _ Remote = (*gateway.Client)(nil)

// Snapshot receives confirmed tag changes so other views stay in step.
// *reconcile.Reconciler implements it.
type Snapshot interface {
	ApplyTagRename(imageID, oldName, newName string) bool
	ApplyTagRemoval(imageID, name string) bool
}

var _ Snapshot = (*reconcile.Reconciler)(nil)

// Session describes the edit in progress.
type Session struct {
	ImageID  string
	Original string
	Draft    string

	// Err is the validation error of the current draft, or nil.
	Err error
}

// Editor edits the tags of a single image.
type Editor struct {
	imageID  string
	remote   Remote
	snapshot Snapshot
	notifier *notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	tags     []string
	state    State
	original string
	draft    string
	err      error
	removal  string

	inflight sync.WaitGroup
}

// Option configures an Editor.
type Option func(*Editor)

// WithSnapshot forwards confirmed renames and removals to s.
func WithSnapshot(s Snapshot) Option {
	return func(e *Editor) {
		e.snapshot = s
	}
}

// WithNotifier sets where user-facing messages go.
func WithNotifier(n *notify.Notifier) Option {
	return func(e *Editor) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger sets the editor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an idle editor for the image's tags.
func New(imageID string, tags []string, remote Remote, opts ...Option) *Editor {
	e := &Editor{
		imageID: imageID,
		remote:  remote,
		logger:  slog.Default(),
		tags:    append([]string(nil), tags...),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = notify.New(notify.WithLogger(e.logger))
	}
	return e
}

// ImageID returns the image being edited.
func (e *Editor) ImageID() string {
	return e.imageID
}

// Tags returns the editable tag list.
func (e *Editor) Tags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tags...)
}

// State returns the current state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns the edit in progress, if any.
func (e *Editor) Session() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return Session{}, false
	}
	return Session{ImageID: e.imageID, Original: e.original, Draft: e.draft, Err: e.err}, true
}

// IsEditing reports whether tag is the one being edited.
func (e *Editor) IsEditing(tag string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != Idle && e.original == tag
}

// StartEditing opens an edit of tag with the draft set to its current name.
// An edit already open is discarded. It fails with ErrBusy while a rename is
// being saved.
func (e *Editor) StartEditing(tag string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Committing {
		return ErrBusy
	}
	if !contains(e.tags, tag) {
		return fmt.Errorf("%w: %q", ErrTagNotFound, tag)
	}
	e.state = Editing
	e.original = tag
	e.draft = tag
	e.err = nil
	return nil
}

// SetDraft replaces the draft and revalidates it. The returned error is the
// draft's validation error, also kept on the session.
func (e *Editor) SetDraft(value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return ErrNotEditing
	}
	e.draft = value
	e.err = Validate(value, e.original, e.tags)
	return e.err
}

// Cancel discards the open edit. It does nothing while a rename is being saved.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Editing {
		e.resetLocked()
	}
}

// Save commits the draft.
//
// An empty or duplicate draft leaves the edit open and returns its validation
// error. A draft equal to the original closes the edit without a request.
// Otherwise the backend renames the tag and, only if it succeeds, the tag is
// renamed locally. On failure the edit is closed and the error returned; the
// tag keeps its old name.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Editing {
		e.mu.Unlock()
		return ErrNotEditing
	}
	value := strings.TrimSpace(e.draft)
	if value == "" {
		e.err = ErrEmptyTag
		e.mu.Unlock()
		return ErrEmptyTag
	}
	if value == e.original {
		e.resetLocked()
		e.mu.Unlock()
		return nil
	}
	if IsDuplicate(value, e.original, e.tags) {
		e.err = ErrDuplicateTag
		e.mu.Unlock()
		return ErrDuplicateTag
	}
	oldName := e.original
	e.state = Committing
	e.mu.Unlock()

	err := e.remote.RenameTag(ctx, e.imageID, oldName, value)

	e.mu.Lock()
	e.resetLocked()
	if err == nil {
		for i, t := range e.tags {
			if t == oldName {
				e.tags[i] = value
			}
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to rename tag",
			"op", reconcile.OpRenameTag,
			"image_id", e.imageID,
			"tag", oldName,
			"new_tag", value,
			"error", err,
		)
		e.notifier.Error("Failed to rename tag: " + gateway.Detail(err, "backend unavailable"))
		return fmt.Errorf("failed to rename tag: %w", err)
	}

	if e.snapshot != nil {
		e.snapshot.ApplyTagRename(e.imageID, oldName, value)
	}
	e.notifier.Success(fmt.Sprintf("Tag %q renamed to %q", oldName, value))
	return nil
}

// RequestRemoval marks tag for removal pending confirmation.
func (e *Editor) RequestRemoval(tag string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !contains(e.tags, tag) {
		return fmt.Errorf("%w: %q", ErrTagNotFound, tag)
	}
	e.removal = tag
	return nil
}

// PendingRemoval returns the tag awaiting confirmation.
func (e *Editor) PendingRemoval() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removal, e.removal != ""
}

// CancelRemoval clears the pending removal.
func (e *Editor) CancelRemoval() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removal = ""
}

// ConfirmRemoval removes the pending tag locally and fires the remote delete.
// The outcome of the delete is reported through the notifier; use Wait to
// block until it is known.
func (e *Editor) ConfirmRemoval(ctx context.Context) error {
	e.mu.Lock()
	tag := e.removal
	if tag == "" {
		e.mu.Unlock()
		return ErrNoPendingRemoval
	}
	e.removal = ""
	e.tags = remove(e.tags, tag)
	if e.state == Editing && e.original == tag {
		e.resetLocked()
	}
	e.mu.Unlock()

	if e.snapshot != nil {
		e.snapshot.ApplyTagRemoval(e.imageID, tag)
	}

	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		msg, err := e.remote.DeleteTag(ctx, e.imageID, tag)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to remove tag",
				"op", reconcile.OpRemoveTag,
				"policy", reconcile.PolicyFor(reconcile.OpRemoveTag),
				"image_id", e.imageID,
				"tag", tag,
				"error", err,
			)
			e.notifier.Error(gateway.Detail(err, "Failed to remove tag"))
			return
		}
		if msg == "" {
			msg = fmt.Sprintf("Tag %q removed", tag)
		}
		e.notifier.Success(msg)
	}()
	return nil
}

// Wait blocks until every fired remote delete has finished.
func (e *Editor) Wait() {
	e.inflight.Wait()
}

func (e *Editor) resetLocked() {
	e.state = Idle
	e.original = ""
	e.draft = ""
	e.err = nil
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func remove(tags []string, tag string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
