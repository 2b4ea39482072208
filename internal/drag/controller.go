// Package drag turns a press-move-release pointer sequence into a single
// person-to-group assignment intent.
//
// A press only becomes a drag once the pointer has moved farther than the
// activation distance. On release the dragged element's box is matched against
// the registered drop targets; among the targets it overlaps, the one whose
// corners are closest to the element's corners wins.
package drag

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultActivationDistance is how far, in pixels, the pointer must travel
// before a press turns into a drag.
const DefaultActivationDistance = 8

// Target is a drop zone, one per group.
type Target struct {
	ID   string
	Rect Rect
}

// Intent is the outcome of a completed drag.
type Intent struct {
	PersonID string
	GroupID  string
}

// AssignFunc receives the intent of a drop. (*reconcile.Reconciler).AssignPerson
// has this signature.
type AssignFunc func(ctx context.Context, personID, groupID string) error

// Controller tracks one pointer interaction at a time.
type Controller struct {
	assign     AssignFunc
	activation float64
	logger     *slog.Logger

	mu      sync.Mutex
	targets []Target

	pressed bool
	itemID  string
	origin  Point
	bounds  Rect
	pointer Point
	active  string
}

// Option configures a Controller.
type Option func(*Controller)

// WithActivationDistance overrides the drag threshold in pixels.
func WithActivationDistance(d float64) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.activation = d
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a controller that hands drop intents to assign.
func New(assign AssignFunc, opts ...Option) *Controller {
	c := &Controller{
		assign:     assign,
		activation: DefaultActivationDistance,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterTarget adds a drop target or moves an existing one. Targets keep
// their registration order, which breaks ties.
func (c *Controller) RegisterTarget(id string, rect Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.targets {
		if c.targets[i].ID == id {
			c.targets[i].Rect = rect
			return
		}
	}
	c.targets = append(c.targets, Target{ID: id, Rect: rect})
}

// RemoveTarget drops a target.
func (c *Controller) RemoveTarget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.targets {
		if c.targets[i].ID == id {
			c.targets = append(c.targets[:i:i], c.targets[i+1:]...)
			return
		}
	}
}

// Targets returns the registered targets in order.
func (c *Controller) Targets() []Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Target(nil), c.targets...)
}

// Press starts an interaction on the item with the given id. bounds is the
// item's box at the time of the press. A press in progress is abandoned.
func (c *Controller) Press(itemID string, at Point, bounds Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pressed = true
	c.itemID = itemID
	c.origin = at
	c.pointer = at
	c.bounds = bounds
	c.active = ""
}

// Move updates the pointer. It reports whether a drag is in progress, which
// happens once the pointer has moved past the activation distance.
func (c *Controller) Move(to Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.pressed {
		return false
	}
	c.pointer = to
	if c.active == "" && to.Distance(c.origin) > c.activation {
		c.active = c.itemID
		c.logger.Debug("Drag started", "item_id", c.itemID)
	}
	return c.active != ""
}

// ActiveID returns the id of the item being dragged.
func (c *Controller) ActiveID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// Over returns the target the dragged item would drop on now.
func (c *Controller) Over() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return "", false
	}
	return c.targetLocked(c.pointer)
}

// Release ends the interaction at the given pointer position.
//
// If a drag is active and the item is over a target, exactly one intent is
// handed to the assign function and returned together with its error. The
// active id is cleared whatever the outcome. A release before the drag
// activated, or outside every target, emits nothing.
func (c *Controller) Release(ctx context.Context, at Point) (Intent, bool, error) {
	c.mu.Lock()
	active := c.active
	var (
		groupID string
		ok      bool
	)
	if active != "" {
		groupID, ok = c.targetLocked(at)
	}
	c.resetLocked()
	c.mu.Unlock()

	if active == "" {
		return Intent{}, false, nil
	}
	if !ok {
		c.logger.Debug("Drag dropped outside any target", "item_id", active)
		return Intent{}, false, nil
	}

	intent := Intent{PersonID: active, GroupID: groupID}
	c.logger.Debug("Drag dropped", "person_id", intent.PersonID, "group_id", intent.GroupID)
	if c.assign == nil {
		return intent, true, nil
	}
	return intent, true, c.assign(ctx, intent.PersonID, intent.GroupID)
}

// Cancel abandons the interaction without emitting anything.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// targetLocked picks the drop target for the item with the pointer at p.
func (c *Controller) targetLocked(p Point) (string, bool) {
	dragged := c.bounds.Translate(p.X-c.origin.X, p.Y-c.origin.Y)

	best, found := "", false
	var bestDist float64
	for _, t := range c.targets {
		if !dragged.Intersects(t.Rect) {
			continue
		}
		d := cornerDistance(dragged, t.Rect)
		if !found || d < bestDist {
			best, bestDist, found = t.ID, d, true
		}
	}
	return best, found
}

func (c *Controller) resetLocked() {
	c.pressed = false
	c.itemID = ""
	c.active = ""
	c.origin = Point{}
	c.pointer = Point{}
	c.bounds = Rect{}
}
