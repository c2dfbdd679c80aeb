package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToOutletSubscribers(t *testing.T) {
	hub := NewHub()
	chA := hub.Subscribe(1)
	chB := hub.Subscribe(1)
	chOther := hub.Subscribe(2)

	hub.JobQueued(1, "kot_kitchen")

	for _, ch := range []chan Hint{chA, chB} {
		select {
		case hint := <-ch:
			assert.Equal(t, int64(1), hint.OutletID)
			assert.Equal(t, "kot_kitchen", hint.Station)
			assert.False(t, hint.QueuedAt.IsZero())
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the hint")
		}
	}

	select {
	case <-chOther:
		t.Fatal("hint leaked to another outlet")
	default:
	}
}

func TestHubNeverBlocksOnFullSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(1)

	// Fill the buffer and keep publishing; the publisher must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			hub.JobQueued(1, "kot_kitchen")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.Equal(t, cap(ch), len(ch), "buffer holds the first hints, the rest are dropped")
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe(1)
	hub.Unsubscribe(1, ch)

	_, open := <-ch
	require.False(t, open)

	// Publishing after unsubscribe is a no-op, not a panic.
	hub.JobQueued(1, "kot_kitchen")

	// Double unsubscribe is safe.
	hub.Unsubscribe(1, ch)
}
