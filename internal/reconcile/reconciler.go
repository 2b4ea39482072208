// Package reconcile keeps the admin client's snapshot of people, groups and
// images in step with the backend.
//
// Every mutation is registered with a MutationPolicy. Optimistic mutations
// (member assignment and removal, group deletion, image-group links) change the
// snapshot first and fire the remote call without waiting; a failure is logged
// and, with WithRollback(true), compensated. Gated mutations (creating groups,
// people and images) wait for the backend and only then change the snapshot.
//
// A person belongs to at most one group. The check and the optimistic write
// happen under one lock, so two concurrent assignments of the same person
// cannot both be admitted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/paladium/internal/gateway"
	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/notify"
)

// DefaultConcurrency bounds the parallel requests of a batch.
const DefaultConcurrency = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Remote is the part of the backend API the reconciler drives.
// *gateway.Client implements it.
type Remote interface {
	ListPeople(ctx context.Context) ([]models.Person, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	ListImages(ctx context.Context) ([]models.ImageItem, error)

	CreatePerson(ctx context.Context, name, email, password string) (models.Person, error)
	CreateGroup(ctx context.Context, name string) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
	AddMember(ctx context.Context, groupID, personID string) error
	RemoveMember(ctx context.Context, groupID, personID string) error

	UploadImage(ctx context.Context, filename string, r io.Reader) (models.ImageItem, error)
	AddImageToGroup(ctx context.Context, imageID, groupID string) error
	RemoveImageFromGroup(ctx context.Context, imageID, groupID string) error
}

var _ Remote = (*gateway.Client)(nil)

// Reconciler owns the client-side snapshot. Accessors return copies.
type Reconciler struct {
	remote      Remote
	notifier    *notify.Notifier
	logger      *slog.Logger
	rollback    bool
	concurrency int

	mu     sync.Mutex
	people []models.Person
	groups []models.Group
	images []models.ImageItem

	inflight sync.WaitGroup
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithNotifier sets where user-facing messages go.
func WithNotifier(n *notify.Notifier) Option {
	return func(r *Reconciler) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithLogger sets the reconciler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRollback enables compensation of optimistic mutations whose remote call
// fails. Off by default: the snapshot keeps the optimistic change.
func WithRollback(enabled bool) Option {
	return func(r *Reconciler) {
		r.rollback = enabled
	}
}

// WithConcurrency bounds the parallel requests of a batch.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// New creates a Reconciler with an empty snapshot.
func New(remote Remote, opts ...Option) *Reconciler {
	r := &Reconciler{
		remote:      remote,
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.notifier == nil {
		r.notifier = notify.New(notify.WithLogger(r.logger))
	}
	return r
}

// Notifier returns the notifier mutations report to.
func (r *Reconciler) Notifier() *notify.Notifier {
	return r.notifier
}

// Load fetches people, groups and images in parallel and replaces the snapshot.
func (r *Reconciler) Load(ctx context.Context) error {
	var (
		people []models.Person
		groups []models.Group
		images []models.ImageItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		people, err = r.remote.ListPeople(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		groups, err = r.remote.ListGroups(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		images, err = r.remote.ListImages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		r.logger.ErrorContext(ctx, "Failed to load snapshot", "error", err)
		r.notifier.Error("Failed to load data")
		return fmt.Errorf("failed to load data: %w", err)
	}

	r.mu.Lock()
	r.people = people
	r.groups = make([]models.Group, len(groups))
	for i, grp := range groups {
		r.groups[i] = grp.Clone()
		if r.groups[i].Members == nil {
			r.groups[i].Members = []models.Person{}
		}
	}
	r.images = make([]models.ImageItem, len(images))
	for i, img := range images {
		r.images[i] = img.Clone()
	}
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Snapshot loaded", "people", len(people), "groups", len(groups), "images", len(images))
	return nil
}

// Wait blocks until every fired remote call has finished.
func (r *Reconciler) Wait() {
	r.inflight.Wait()
}

// People returns every known person.
func (r *Reconciler) People() []models.Person {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Person, len(r.people))
	copy(out, r.people)
	return out
}

// AvailablePeople returns the people who are not in any group.
func (r *Reconciler) AvailablePeople() []models.Person {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Person, 0, len(r.people))
	for _, p := range r.people {
		if _, ok := r.groupOfLocked(p.ID); !ok {
			out = append(out, p)
		}
	}
	return out
}

// Groups returns every group with its members.
func (r *Reconciler) Groups() []models.Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = g.Clone()
	}
	return out
}

// Group returns the group with the given id.
func (r *Reconciler) Group(groupID string) (models.Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.groupIndexLocked(groupID)
	if idx < 0 {
		return models.Group{}, false
	}
	return r.groups[idx].Clone(), true
}

// GroupOf returns the group the person is a member of.
func (r *Reconciler) GroupOf(personID string) (models.Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.groupOfLocked(personID)
	if !ok {
		return models.Group{}, false
	}
	return r.groups[idx].Clone(), true
}

// Images returns every image.
func (r *Reconciler) Images() []models.ImageItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ImageItem, len(r.images))
	for i, img := range r.images {
		out[i] = img.Clone()
	}
	return out
}

// Image returns the image with the given id.
func (r *Reconciler) Image(imageID string) (models.ImageItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.imageIndexLocked(imageID)
	if idx < 0 {
		return models.ImageItem{}, false
	}
	return r.images[idx].Clone(), true
}

// AssignPerson adds a person to a group.
//
// A person who is already in any group is rejected with ErrAlreadyAssigned and
// nothing changes. Otherwise the person is appended to the group's members and
// the remote call is fired without waiting.
func (r *Reconciler) AssignPerson(ctx context.Context, personID, groupID string) error {
	r.mu.Lock()
	if _, ok := r.groupOfLocked(personID); ok {
		r.mu.Unlock()
		return r.reject(ctx, OpAssignPerson, ErrAlreadyAssigned)
	}
	pIdx := r.personIndexLocked(personID)
	if pIdx < 0 {
		r.mu.Unlock()
		return r.reject(ctx, OpAssignPerson, ErrPersonNotFound)
	}
	gIdx := r.groupIndexLocked(groupID)
	if gIdx < 0 {
		r.mu.Unlock()
		return r.reject(ctx, OpAssignPerson, ErrGroupNotFound)
	}
	person := r.people[pIdx]
	groupName := r.groups[gIdx].Name
	r.groups[gIdx].Members = append(r.groups[gIdx].Members, person)
	r.mu.Unlock()

	r.notifier.Success(fmt.Sprintf("%s added to %s", person.Name, groupName))
	r.fire(ctx, OpAssignPerson,
		func(ctx context.Context) error {
			return r.remote.AddMember(ctx, groupID, personID)
		},
		func() {
			if idx := r.groupIndexLocked(groupID); idx >= 0 {
				r.groups[idx].Members = removePerson(r.groups[idx].Members, personID)
			}
		},
	)
	return nil
}

// RemoveMember removes a person from a group. The local removal is
// unconditional and the remote call is always fired.
func (r *Reconciler) RemoveMember(ctx context.Context, groupID, personID string) {
	var (
		removed  models.Person
		position = -1
	)

	r.mu.Lock()
	if idx := r.groupIndexLocked(groupID); idx >= 0 {
		for i, m := range r.groups[idx].Members {
			if m.ID == personID {
				removed, position = m, i
				break
			}
		}
		r.groups[idx].Members = removePerson(r.groups[idx].Members, personID)
	}
	r.mu.Unlock()

	r.notifier.Success("Member removed")
	r.fire(ctx, OpRemoveMember,
		func(ctx context.Context) error {
			return r.remote.RemoveMember(ctx, groupID, personID)
		},
		func() {
			if position < 0 {
				return
			}
			idx := r.groupIndexLocked(groupID)
			if idx < 0 {
				return
			}
			if _, taken := r.groupOfLocked(personID); taken {
				return
			}
			r.groups[idx].Members = insertPerson(r.groups[idx].Members, position, removed)
		},
	)
}

// DeleteGroup removes a group locally, unlinks it from every image, and fires
// the remote delete.
func (r *Reconciler) DeleteGroup(ctx context.Context, groupID string) error {
	r.mu.Lock()
	position := r.groupIndexLocked(groupID)
	if position < 0 {
		r.mu.Unlock()
		return r.reject(ctx, OpDeleteGroup, ErrGroupNotFound)
	}
	deleted := r.groups[position]
	r.groups = append(r.groups[:position:position], r.groups[position+1:]...)
	var linked []string
	for i := range r.images {
		if r.images[i].InGroup(groupID) {
			linked = append(linked, r.images[i].ID)
			r.images[i].GroupIDs = removeID(r.images[i].GroupIDs, groupID)
		}
	}
	r.mu.Unlock()

	r.notifier.Success("Group deleted")
	r.fire(ctx, OpDeleteGroup,
		func(ctx context.Context) error {
			return r.remote.DeleteGroup(ctx, groupID)
		},
		func() {
			if r.groupIndexLocked(groupID) >= 0 {
				return
			}
			restored := deleted.Clone()
			restored.Members = make([]models.Person, 0, len(deleted.Members))
			for _, m := range deleted.Members {
				if _, taken := r.groupOfLocked(m.ID); !taken {
					restored.Members = append(restored.Members, m)
				}
			}
			pos := min(position, len(r.groups))
			r.groups = append(r.groups[:pos], append([]models.Group{restored}, r.groups[pos:]...)...)
			for _, imageID := range linked {
				if idx := r.imageIndexLocked(imageID); idx >= 0 {
					r.images[idx].GroupIDs = addID(r.images[idx].GroupIDs, groupID)
				}
			}
		},
	)
	return nil
}

// CreateGroup creates a group on the backend and, once it answers, appends it
// with its canonical id. Empty names are rejected before any request.
func (r *Reconciler) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, r.reject(ctx, OpCreateGroup, ErrEmptyGroupName)
	}

	group, err := r.remote.CreateGroup(ctx, name)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create group", "name", name, "error", err)
		r.notifier.Error(gateway.Detail(err, "Failed to create group"))
		return models.Group{}, fmt.Errorf("failed to create group: %w", err)
	}
	if group.Members == nil {
		group.Members = []models.Person{}
	}

	r.mu.Lock()
	r.groups = append(r.groups, group.Clone())
	r.mu.Unlock()

	r.notifier.Success(fmt.Sprintf("Group %q created", group.Name))
	return group, nil
}

// CreatePerson registers an annotator. Name and email are required and the
// email must look like one; a duplicate email yields ErrEmailTaken.
func (r *Reconciler) CreatePerson(ctx context.Context, name, email, password string) (models.Person, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return models.Person{}, r.reject(ctx, OpCreatePerson, ErrMissingPersonFields)
	}
	if !emailPattern.MatchString(email) {
		return models.Person{}, r.reject(ctx, OpCreatePerson, ErrInvalidEmail)
	}

	person, err := r.remote.CreatePerson(ctx, name, email, password)
	if err != nil {
		if errors.Is(err, gateway.ErrConflict) {
			return models.Person{}, r.reject(ctx, OpCreatePerson, ErrEmailTaken)
		}
		r.logger.ErrorContext(ctx, "Failed to create annotator", "email", email, "error", err)
		r.notifier.Error("Failed to create annotator")
		return models.Person{}, fmt.Errorf("failed to create annotator: %w", err)
	}

	r.mu.Lock()
	r.people = append(r.people, person)
	r.mu.Unlock()

	r.notifier.Success(fmt.Sprintf("Annotator %q created", person.Name))
	return person, nil
}

// UploadImage uploads an image and appends it once the backend has stored it.
func (r *Reconciler) UploadImage(ctx context.Context, filename string, content io.Reader) (models.ImageItem, error) {
	img, err := r.remote.UploadImage(ctx, filename, content)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upload image", "filename", filename, "error", err)
		r.notifier.Error(gateway.Detail(err, "Upload failed"))
		return models.ImageItem{}, fmt.Errorf("failed to upload image: %w", err)
	}
	if img.GroupIDs == nil {
		img.GroupIDs = []string{}
	}

	r.mu.Lock()
	r.images = append(r.images, img.Clone())
	r.mu.Unlock()

	r.notifier.Success("Image uploaded successfully")
	return img, nil
}

// AssignImagesToGroups links every image to every group.
//
// One request is sent per (image, group) pair, in parallel, and the call
// returns once all of them have finished. The local merge is a set union per
// image and is applied to every listed image even when some pairs failed;
// with rollback enabled the failed pairs are left out of the merge. Failed
// pairs are returned as a *BatchError.
func (r *Reconciler) AssignImagesToGroups(ctx context.Context, imageIDs, groupIDs []string) error {
	imageIDs = dedupe(imageIDs)
	groupIDs = dedupe(groupIDs)
	if len(imageIDs) == 0 {
		return nil
	}

	failures := r.runPairs(ctx, OpAssignImages, imageIDs, groupIDs, r.remote.AddImageToGroup)

	failed := make(map[[2]string]bool, len(failures))
	for _, f := range failures {
		failed[[2]string{f.ImageID, f.GroupID}] = true
	}

	r.mu.Lock()
	for _, imageID := range imageIDs {
		idx := r.imageIndexLocked(imageID)
		if idx < 0 {
			continue
		}
		for _, groupID := range groupIDs {
			if r.rollback && failed[[2]string{imageID, groupID}] {
				continue
			}
			r.images[idx].GroupIDs = addID(r.images[idx].GroupIDs, groupID)
		}
	}
	r.mu.Unlock()

	r.notifier.Success(fmt.Sprintf("Assigned %d image(s) to %d group(s)", len(imageIDs), len(groupIDs)))

	if len(failures) > 0 {
		return &BatchError{Op: OpAssignImages, Total: len(imageIDs) * len(groupIDs), Failures: failures}
	}
	return nil
}

// RemoveImagesFromGroup unlinks the images from the group locally and fires one
// remote call per image.
func (r *Reconciler) RemoveImagesFromGroup(ctx context.Context, imageIDs []string, groupID string) {
	imageIDs = dedupe(imageIDs)
	if len(imageIDs) == 0 {
		return
	}

	r.mu.Lock()
	for _, imageID := range imageIDs {
		if idx := r.imageIndexLocked(imageID); idx >= 0 {
			r.images[idx].GroupIDs = removeID(r.images[idx].GroupIDs, groupID)
		}
	}
	r.mu.Unlock()

	r.notifier.Success("Removed from group")
	for _, imageID := range imageIDs {
		r.fire(ctx, OpRemoveImages,
			func(ctx context.Context) error {
				return r.remote.RemoveImageFromGroup(ctx, imageID, groupID)
			},
			func() {
				if r.groupIndexLocked(groupID) < 0 {
					return
				}
				if idx := r.imageIndexLocked(imageID); idx >= 0 {
					r.images[idx].GroupIDs = addID(r.images[idx].GroupIDs, groupID)
				}
			},
		)
	}
}

// ApplyTagRename reflects a confirmed tag rename in the snapshot.
// It reports false when the image or tag is no longer known.
func (r *Reconciler) ApplyTagRename(imageID, oldName, newName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.imageIndexLocked(imageID)
	if idx < 0 {
		return false
	}
	t := r.images[idx].FindTag(oldName)
	if t < 0 {
		return false
	}
	r.images[idx].Tags[t].Name = newName
	return true
}

// ApplyTagRemoval drops a tag from an image in the snapshot.
// It reports false when the image or tag is no longer known.
func (r *Reconciler) ApplyTagRemoval(imageID, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.imageIndexLocked(imageID)
	if idx < 0 {
		return false
	}
	t := r.images[idx].FindTag(name)
	if t < 0 {
		return false
	}
	tags := r.images[idx].Tags
	r.images[idx].Tags = append(tags[:t:t], tags[t+1:]...)
	return true
}

// reject reports a local rejection to the user and returns it.
func (r *Reconciler) reject(ctx context.Context, op Operation, err error) error {
	r.logger.DebugContext(ctx, "Mutation rejected", "op", op, "reason", err)
	msg := err.Error()
	if len(msg) > 0 {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	r.notifier.Error(msg)
	return err
}

// fire runs an optimistic mutation's remote call in the background. The call
// outlives ctx's cancellation. A failure is logged and shown as an error
// notification; undo runs under the lock when rollback is enabled.
func (r *Reconciler) fire(ctx context.Context, op Operation, call func(context.Context) error, undo func()) {
	ctx = context.WithoutCancel(ctx)
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		err := call(ctx)
		if err == nil {
			return
		}
		r.logger.ErrorContext(ctx, "Remote sync failed",
			"op", op,
			"policy", PolicyFor(op),
			"error", err,
		)
		if r.rollback && undo != nil {
			r.mu.Lock()
			undo()
			r.mu.Unlock()
			r.logger.WarnContext(ctx, "Local change rolled back", "op", op)
		}
		r.notifier.Error(gateway.Detail(err, "Failed to sync changes"))
	}()
}

// runPairs sends fn for every (image, group) pair in parallel and returns the
// failed pairs.
func (r *Reconciler) runPairs(ctx context.Context, op Operation, imageIDs, groupIDs []string, fn func(ctx context.Context, imageID, groupID string) error) []PairError {
	ctx = context.WithoutCancel(ctx)

	var (
		mu       sync.Mutex
		failures []PairError
		g        errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for _, imageID := range imageIDs {
		for _, groupID := range groupIDs {
			g.Go(func() error {
				if err := fn(ctx, imageID, groupID); err != nil {
					r.logger.ErrorContext(ctx, "Remote sync failed",
						"op", op,
						"image_id", imageID,
						"group_id", groupID,
						"error", err,
					)
					mu.Lock()
					failures = append(failures, PairError{ImageID: imageID, GroupID: groupID, Err: err})
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return failures
}

func (r *Reconciler) personIndexLocked(personID string) int {
	for i, p := range r.people {
		if p.ID == personID {
			return i
		}
	}
	return -1
}

func (r *Reconciler) groupIndexLocked(groupID string) int {
	for i, g := range r.groups {
		if g.ID == groupID {
			return i
		}
	}
	return -1
}

func (r *Reconciler) imageIndexLocked(imageID string) int {
	for i, img := range r.images {
		if img.ID == imageID {
			return i
		}
	}
	return -1
}

func (r *Reconciler) groupOfLocked(personID string) (int, bool) {
	for i, g := range r.groups {
		if g.HasMember(personID) {
			return i, true
		}
	}
	return -1, false
}

func removePerson(members []models.Person, personID string) []models.Person {
	out := members[:0:0]
	for _, m := range members {
		if m.ID != personID {
			out = append(out, m)
		}
	}
	if out == nil {
		out = []models.Person{}
	}
	return out
}

func insertPerson(members []models.Person, at int, p models.Person) []models.Person {
	at = min(at, len(members))
	out := make([]models.Person, 0, len(members)+1)
	out = append(out, members[:at]...)
	out = append(out, p)
	return append(out, members[at:]...)
}

func addID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
