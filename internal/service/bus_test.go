package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusSessionFilter(t *testing.T) {
	b := NewEventBus()
	all := b.Subscribe()
	one := b.SubscribeSession("s1")
	assert.Equal(t, 2, b.Len())

	b.Publish(Event{Resource: ResourceHover, Session: "s2"})
	b.Publish(Event{Resource: ResourceHover, Session: "s1", ID: "A-1-1"})
	b.Publish(Event{Resource: ResourceBuildings, ID: "a"})

	assert.Len(t, all, 3)
	assert.Len(t, one, 2)
	assert.Equal(t, "A-1-1", (<-one).ID)
	assert.Equal(t, ResourceBuildings, (<-one).Resource)

	b.Unsubscribe(one)
	b.Unsubscribe(one)
	_, open := <-one
	assert.False(t, open)
	assert.Equal(t, 1, b.Len())
}

func TestBusDropsForSlowSubscribers(t *testing.T) {
	b := NewEventBus()
	ch := b.Subscribe()
	for i := 0; i < 100; i++ {
		b.Publish(Event{Resource: ResourceView})
	}
	assert.Len(t, ch, cap(ch))
}
