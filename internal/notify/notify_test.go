package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowReplacesPrior(t *testing.T) {
	n := New()
	defer n.Dismiss()

	n.Success("first")
	n.Error("second")

	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "second", got.Message)
	assert.Equal(t, KindError, got.Kind)
}

func TestNotificationExpires(t *testing.T) {
	n := New(WithTTL(20 * time.Millisecond))

	n.Success("saved")
	_, ok := n.Current()
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestReplacementRestartsExpiry(t *testing.T) {
	n := New(WithTTL(60 * time.Millisecond))

	n.Success("first")
	time.Sleep(40 * time.Millisecond)
	n.Success("second")
	time.Sleep(40 * time.Millisecond)

	// The first timer would have fired by now; the second must still be visible.
	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "second", got.Message)
}

func TestDefaultTTL(t *testing.T) {
	n := New()
	assert.Equal(t, 3*time.Second, n.ttl)
}

func TestSubscribe(t *testing.T) {
	n := New()
	defer n.Dismiss()

	var seen []string
	unsubscribe := n.Subscribe(func(note Notification) {
		seen = append(seen, note.Message)
	})

	n.Success("a")
	n.Error("b")
	unsubscribe()
	n.Success("c")

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestObserversCalledInSubscriptionOrder(t *testing.T) {
	n := New()
	defer n.Dismiss()

	var order []int
	for i := range 8 {
		n.Subscribe(func(Notification) {
			order = append(order, i)
		})
	}

	n.Success("a")
	n.Success("b")

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestIDsIncrease(t *testing.T) {
	n := New()
	defer n.Dismiss()

	first := n.Success("a")
	second := n.Success("b")
	assert.Greater(t, second.ID, first.ID)
}
