package live

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drained(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNotifyWakesSubscribersOfThatGroupOnly(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe(7)
	defer cancelA()
	b, cancelB := hub.Subscribe(8)
	defer cancelB()

	hub.Notify(7)
	assert.True(t, drained(a))
	assert.False(t, drained(b))
}

func TestNotifyCoalescesAndNeverBlocks(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(7)
	defer cancel()

	hub.Notify(7)
	hub.Notify(7)
	hub.Notify(7)

	assert.True(t, drained(ch))
	assert.False(t, drained(ch), "repeat signals coalesce into one")
}

func TestCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(7)
	require.Equal(t, 1, hub.SubscriberCount(7))

	cancel()
	require.Equal(t, 0, hub.SubscriberCount(7))

	hub.Notify(7)
	assert.False(t, drained(ch))

	// Double cancel is harmless.
	cancel()
}

func TestNotifyWithoutSubscribersIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Notify(99)
	assert.Equal(t, 0, hub.SubscriberCount(99))
}
