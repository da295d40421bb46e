package scene

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/joeblew999/plat-estate/internal/logging"
	"github.com/joeblew999/plat-estate/internal/service"
)

// ErrSessionNotFound is returned for an unknown or closed session ID.
var ErrSessionNotFound = errors.New("session not found")

// Registry holds the open sessions and the world they browse.
type Registry struct {
	mu       sync.RWMutex
	world    *World
	sessions map[string]*Session
	bus      *service.EventBus
	log      logrus.FieldLogger
}

// NewRegistry creates an empty registry over w.
func NewRegistry(w *World, bus *service.EventBus, log logrus.FieldLogger) *Registry {
	return &Registry{
		world:    w,
		sessions: make(map[string]*Session),
		bus:      bus,
		log:      logging.Or(log),
	}
}

// World returns the current world.
func (r *Registry) World() *World {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.world
}

// Open creates a session with a fresh ID. Bus and Log in opts default to
// the registry's.
func (r *Registry) Open(opts Options) (*Session, error) {
	if opts.Bus == nil {
		opts.Bus = r.bus
	}
	if opts.Log == nil {
		opts.Log = r.log
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	s, err := NewSession(id, r.world, opts)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = s
	r.publish(id, "created")
	r.log.WithFields(logrus.Fields{"session": id, "surface": s.Surface()}).Info("session opened")
	return s, nil
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close removes the session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	r.publish(id, "deleted")
	r.log.WithField("session", id).Info("session closed")
	return nil
}

// IDs returns the open session IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SetWorld swaps in a regenerated world and moves every session onto it.
func (r *Registry) SetWorld(w *World) {
	r.mu.Lock()
	r.world = w
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Replace(w)
	}
	r.log.WithFields(logrus.Fields{
		"units":    w.Catalog.Len(),
		"sessions": len(sessions),
	}).Info("catalog regenerated")
}

func (r *Registry) publish(id, action string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(service.Event{Resource: service.ResourceSessions, Action: action, ID: id, Session: id})
}
