package tutor

import "sync"

// Registry holds the live session controller for each mounted widget
// instance, keyed by instance id. Sessions are handed out explicitly rather
// than looked up ambiently, and Release carries the unmount cleanup
// obligation: it disconnects before dropping the entry so the transport is
// never leaked.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*SessionController
	factory  func(instanceID string) Transport
}

func NewRegistry(factory func(instanceID string) Transport) *Registry {
	return &Registry{
		sessions: make(map[string]*SessionController),
		factory:  factory,
	}
}

// Acquire returns the controller for an instance, creating one on first use.
// A new instance id always starts with zeroed hint counters and an empty log.
func (r *Registry) Acquire(instanceID string) *SessionController {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.sessions[instanceID]; ok {
		return c
	}
	c := NewSessionController(r.factory(instanceID))
	r.sessions[instanceID] = c
	return c
}

// Get returns the controller for an instance without creating one.
func (r *Registry) Get(instanceID string) (*SessionController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[instanceID]
	return c, ok
}

// Release disconnects and removes an instance's session. Safe to call for
// unknown ids.
func (r *Registry) Release(instanceID string) {
	r.mu.Lock()
	c, ok := r.sessions[instanceID]
	delete(r.sessions, instanceID)
	r.mu.Unlock()

	if ok {
		c.Disconnect()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
