package drag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/paladium/internal/models"
	"github.com/mmynk/paladium/internal/reconcile"
)

// recordingAssign collects every intent it receives.
type recordingAssign struct {
	intents []Intent
	err     error
}

func (r *recordingAssign) assign(ctx context.Context, personID, groupID string) error {
	r.intents = append(r.intents, Intent{PersonID: personID, GroupID: groupID})
	return r.err
}

var (
	card = Rect{X: 0, Y: 0, Width: 100, Height: 40}
	red  = Rect{X: 200, Y: 0, Width: 200, Height: 200}
	blue = Rect{X: 450, Y: 0, Width: 200, Height: 200}
)

func setupController(t *testing.T, assign AssignFunc, opts ...Option) *Controller {
	t.Helper()
	c := New(assign, opts...)
	c.RegisterTarget("red", red)
	c.RegisterTarget("blue", blue)
	return c
}

func TestActivationDistance(t *testing.T) {
	tests := []struct {
		name       string
		move       Point
		wantActive bool
	}{
		{name: "no movement", move: Point{50, 20}, wantActive: false},
		{name: "below threshold", move: Point{55, 24}, wantActive: false},
		{name: "exactly threshold", move: Point{58, 20}, wantActive: false},
		{name: "past threshold", move: Point{59, 20}, wantActive: true},
		{name: "diagonal past threshold", move: Point{56, 27}, wantActive: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupController(t, nil)
			c.Press("bob", Point{50, 20}, card)

			assert.Equal(t, tt.wantActive, c.Move(tt.move))
			id, ok := c.ActiveID()
			assert.Equal(t, tt.wantActive, ok)
			if tt.wantActive {
				assert.Equal(t, "bob", id)
			}
		})
	}
}

func TestReleaseBeforeActivationEmitsNothing(t *testing.T) {
	rec := &recordingAssign{}
	c := setupController(t, rec.assign)

	c.Press("bob", Point{50, 20}, card)
	c.Move(Point{53, 20})
	_, emitted, err := c.Release(context.Background(), Point{300, 100})

	require.NoError(t, err)
	assert.False(t, emitted)
	assert.Empty(t, rec.intents)
}

func TestReleaseOverTarget(t *testing.T) {
	rec := &recordingAssign{}
	c := setupController(t, rec.assign)

	c.Press("bob", Point{50, 20}, card)
	require.True(t, c.Move(Point{300, 100}))
	over, ok := c.Over()
	require.True(t, ok)
	assert.Equal(t, "red", over)

	intent, emitted, err := c.Release(context.Background(), Point{300, 100})
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Equal(t, Intent{PersonID: "bob", GroupID: "red"}, intent)
	assert.Equal(t, []Intent{intent}, rec.intents)

	_, active := c.ActiveID()
	assert.False(t, active)
}

func TestReleaseOutsideTargets(t *testing.T) {
	rec := &recordingAssign{}
	c := setupController(t, rec.assign)

	c.Press("bob", Point{50, 20}, card)
	c.Move(Point{50, 600})
	_, emitted, err := c.Release(context.Background(), Point{50, 600})

	require.NoError(t, err)
	assert.False(t, emitted)
	assert.Empty(t, rec.intents)
	_, active := c.ActiveID()
	assert.False(t, active)
}

func TestRejectedIntentStillClearsActive(t *testing.T) {
	rec := &recordingAssign{err: reconcile.ErrAlreadyAssigned}
	c := setupController(t, rec.assign)

	c.Press("alice", Point{50, 20}, card)
	c.Move(Point{550, 100})
	intent, emitted, err := c.Release(context.Background(), Point{550, 100})

	assert.ErrorIs(t, err, reconcile.ErrAlreadyAssigned)
	assert.True(t, emitted)
	assert.Equal(t, "blue", intent.GroupID)
	_, active := c.ActiveID()
	assert.False(t, active)
}

func TestCancel(t *testing.T) {
	rec := &recordingAssign{}
	c := setupController(t, rec.assign)

	c.Press("bob", Point{50, 20}, card)
	c.Move(Point{300, 100})
	c.Cancel()

	_, emitted, _ := c.Release(context.Background(), Point{300, 100})
	assert.False(t, emitted)
	assert.Empty(t, rec.intents)
}

func TestClosestCorners(t *testing.T) {
	left := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	right := Rect{X: 80, Y: 0, Width: 100, Height: 100}
	item := Rect{X: 40, Y: 10, Width: 40, Height: 40}

	tests := []struct {
		name    string
		release Point
		want    string
	}{
		{name: "nearer corners win", release: Point{35, 0}, want: "right"},
		{name: "only one overlapping", release: Point{-20, 0}, want: "left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingAssign{}
			c := New(rec.assign)
			c.RegisterTarget("left", left)
			c.RegisterTarget("right", right)

			c.Press("p", Point{0, 0}, item)
			require.True(t, c.Move(tt.release))
			intent, emitted, err := c.Release(context.Background(), tt.release)

			require.NoError(t, err)
			require.True(t, emitted)
			assert.Equal(t, tt.want, intent.GroupID)
		})
	}
}

func TestClosestCornersTieGoesToFirstRegistered(t *testing.T) {
	rec := &recordingAssign{}
	c := New(rec.assign)
	zone := Rect{X: 0, Y: 0, Width: 100, Height: 100}
	c.RegisterTarget("first", zone)
	c.RegisterTarget("second", zone)

	c.Press("p", Point{0, 0}, Rect{X: 10, Y: 10, Width: 20, Height: 20})
	c.Move(Point{20, 20})
	intent, emitted, err := c.Release(context.Background(), Point{20, 20})

	require.NoError(t, err)
	require.True(t, emitted)
	assert.Equal(t, "first", intent.GroupID)
}

func TestRegisterTargetKeepsOrder(t *testing.T) {
	c := New(nil)
	c.RegisterTarget("a", Rect{Width: 1, Height: 1})
	c.RegisterTarget("b", Rect{Width: 1, Height: 1})
	c.RegisterTarget("a", Rect{X: 5, Width: 1, Height: 1})
	c.RemoveTarget("missing")

	targets := c.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "a", targets[0].ID)
	assert.Equal(t, 5.0, targets[0].Rect.X)

	c.RemoveTarget("a")
	assert.Equal(t, []Target{{ID: "b", Rect: Rect{Width: 1, Height: 1}}}, c.Targets())
}

// groupsRemote serves a fixed snapshot and accepts member changes.
type groupsRemote struct {
	reconcile.Remote
	people []models.Person
	groups []models.Group
}

func (g *groupsRemote) ListPeople(ctx context.Context) ([]models.Person, error) {
	return g.people, nil
}

func (g *groupsRemote) ListGroups(ctx context.Context) ([]models.Group, error) {
	return g.groups, nil
}

func (g *groupsRemote) ListImages(ctx context.Context) ([]models.ImageItem, error) {
	return nil, nil
}

func (g *groupsRemote) AddMember(ctx context.Context, groupID, personID string) error {
	return nil
}

func setupGroups(t *testing.T) (*reconcile.Reconciler, *Controller) {
	t.Helper()
	alice := models.Person{ID: "alice", Name: "Alice"}
	bob := models.Person{ID: "bob", Name: "Bob"}
	remote := &groupsRemote{
		people: []models.Person{alice, bob},
		groups: []models.Group{
			{ID: "red", Name: "Red", Members: []models.Person{alice}},
			{ID: "blue", Name: "Blue", Members: []models.Person{}},
		},
	}
	rec := reconcile.New(remote)
	require.NoError(t, rec.Load(context.Background()))
	return rec, setupController(t, rec.AssignPerson)
}

func TestDragUnassignedPersonOntoGroup(t *testing.T) {
	rec, c := setupGroups(t)

	c.Press("bob", Point{50, 20}, card)
	c.Move(Point{300, 100})
	_, emitted, err := c.Release(context.Background(), Point{300, 100})
	rec.Wait()

	require.NoError(t, err)
	require.True(t, emitted)
	redGroup, _ := rec.Group("red")
	assert.Equal(t, []string{"alice", "bob"}, []string{redGroup.Members[0].ID, redGroup.Members[1].ID})
}

func TestDragAssignedPersonIsRejected(t *testing.T) {
	rec, c := setupGroups(t)

	c.Press("alice", Point{50, 20}, card)
	c.Move(Point{550, 100})
	_, emitted, err := c.Release(context.Background(), Point{550, 100})
	rec.Wait()

	require.True(t, emitted)
	require.ErrorIs(t, err, reconcile.ErrAlreadyAssigned)

	redGroup, _ := rec.Group("red")
	blueGroup, _ := rec.Group("blue")
	assert.Len(t, redGroup.Members, 1)
	assert.Equal(t, "alice", redGroup.Members[0].ID)
	assert.Empty(t, blueGroup.Members)

	n, ok := rec.Notifier().Current()
	require.True(t, ok)
	assert.Equal(t, "This person is already assigned to a group", n.Message)
}
