package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()

	b.Publish(&Event{Type: EventTaskScheduled, TaskID: "t-1"})

	for _, sub := range []Subscriber{sub1, sub2} {
		ev := receive(t, sub)
		assert.Equal(t, EventTaskScheduled, ev.Type)
		assert.Equal(t, "t-1", ev.TaskID)
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op

	_, ok := <-sub
	assert.False(t, ok, "channel should be closed")
}

func TestBrokerPublishNeverBlocks(t *testing.T) {
	b := NewBroker() // not started, nothing drains the queue

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(&Event{Type: EventTaskRejected})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	assert.Positive(t, b.Dropped())
}

func TestBrokerStop(t *testing.T) {
	b := NewBroker()
	b.Start()
	sub := b.Subscribe()

	b.Stop()
	b.Stop()

	_, ok := <-sub
	require.False(t, ok)

	// Publishing after stop is silently ignored
	b.Publish(&Event{Type: EventTaskStarted})
}
