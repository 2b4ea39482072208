package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mmynk/paladium/internal/models"
)

var errBackendDown = errors.New("backend down")

// fakeRemote is an in-memory Remote that counts calls.
type fakeRemote struct {
	mu     sync.Mutex
	people []models.Person
	groups []models.Group
	images []models.ImageItem

	calls map[string]int

	// fail makes the named operation fail with the given error.
	fail map[string]error

	// failPair makes AddImageToGroup fail for "image/group".
	failPair map[string]bool

	// release, when set, blocks fired calls until closed.
	release chan struct{}

	nextID int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		calls:    make(map[string]int),
		fail:     make(map[string]error),
		failPair: make(map[string]bool),
		nextID:   100,
	}
}

func (f *fakeRemote) record(op string) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.fail[op]
	release := f.release
	f.mu.Unlock()
	if release != nil {
		<-release
	}
	return err
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) ListPeople(ctx context.Context) ([]models.Person, error) {
	if err := f.record("list_people"); err != nil {
		return nil, err
	}
	return append([]models.Person(nil), f.people...), nil
}

func (f *fakeRemote) ListGroups(ctx context.Context) ([]models.Group, error) {
	if err := f.record("list_groups"); err != nil {
		return nil, err
	}
	out := make([]models.Group, len(f.groups))
	for i, g := range f.groups {
		out[i] = g.Clone()
	}
	return out, nil
}

func (f *fakeRemote) ListImages(ctx context.Context) ([]models.ImageItem, error) {
	if err := f.record("list_images"); err != nil {
		return nil, err
	}
	out := make([]models.ImageItem, len(f.images))
	for i, img := range f.images {
		out[i] = img.Clone()
	}
	return out, nil
}

func (f *fakeRemote) CreatePerson(ctx context.Context, name, email, password string) (models.Person, error) {
	if err := f.record("create_person"); err != nil {
		return models.Person{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return models.Person{ID: fmt.Sprint(f.nextID), Name: name, Email: email}, nil
}

func (f *fakeRemote) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	if err := f.record("create_group"); err != nil {
		return models.Group{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return models.Group{ID: fmt.Sprint(f.nextID), Name: name}, nil
}

func (f *fakeRemote) DeleteGroup(ctx context.Context, groupID string) error {
	return f.record("delete_group")
}

func (f *fakeRemote) AddMember(ctx context.Context, groupID, personID string) error {
	return f.record("add_member")
}

func (f *fakeRemote) RemoveMember(ctx context.Context, groupID, personID string) error {
	return f.record("remove_member")
}

func (f *fakeRemote) UploadImage(ctx context.Context, filename string, r io.Reader) (models.ImageItem, error) {
	if err := f.record("upload_image"); err != nil {
		return models.ImageItem{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return models.ImageItem{ID: fmt.Sprint(f.nextID), URL: "http://api/uploads/" + filename, Alt: filename}, nil
}

func (f *fakeRemote) AddImageToGroup(ctx context.Context, imageID, groupID string) error {
	if err := f.record("add_image_to_group"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPair[imageID+"/"+groupID] {
		return errBackendDown
	}
	return nil
}

func (f *fakeRemote) RemoveImageFromGroup(ctx context.Context, imageID, groupID string) error {
	return f.record("remove_image_from_group")
}
