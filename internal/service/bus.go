package service

import "sync"

// Resources published on the bus.
const (
	ResourceBuildings = "buildings"
	ResourceSessions  = "sessions"
	ResourceHover     = "hover"
	ResourcePick      = "pick"
	ResourceFilter    = "filter"
	ResourceView      = "view"
	ResourceTiles     = "tiles"
)

// Event is a state change: a building edit, or a hover, pick, filter or
// view update of one browsing session.
type Event struct {
	Resource string // e.g. "hover"
	Action   string // "created", "updated", "deleted", "cleared"
	ID       string // building kind or unit ID
	Session  string // empty for estate-wide events
	Data     any    // payload, e.g. a UnitSummary
}

// EventBus is a simple fan-out pub/sub.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]string
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]string)}
}

// Publish sends an event to every matching subscriber (non-blocking).
// Session events only reach subscribers of that session or of all sessions.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, session := range b.subs {
		if session != "" && e.Session != "" && session != e.Session {
			continue
		}
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives every event.
func (b *EventBus) Subscribe() chan Event {
	return b.SubscribeSession("")
}

// SubscribeSession returns a channel limited to one session's events plus
// estate-wide ones.
func (b *EventBus) SubscribeSession(session string) chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = session
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Len returns the number of subscribers.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
