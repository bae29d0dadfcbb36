package registry

import (
	"sync"

	"github.com/Altrii-recovery/Altrii/internal/model"
)

// Registry is the in-memory half of the session state: a concurrent map of
// UDID to live session plus a per-device mutex. Protocol handlers lock a
// device for the duration of one message so same-device messages never
// interleave; distinct devices proceed fully concurrently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.DeviceSession
	locks    map[string]*sync.Mutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*model.DeviceSession),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Lock acquires the per-device mutex, creating it on first use. The mutex is
// never removed; the set of devices a single instance manages is small.
func (r *Registry) Lock(udid string) {
	r.deviceMutex(udid).Lock()
}

// Unlock releases the per-device mutex.
func (r *Registry) Unlock(udid string) {
	r.deviceMutex(udid).Unlock()
}

func (r *Registry) deviceMutex(udid string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[udid]
	if !ok {
		m = &sync.Mutex{}
		r.locks[udid] = m
	}
	return m
}

// Put records a session.
func (r *Registry) Put(session *model.DeviceSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *session
	r.sessions[session.UDID] = &copied
}

// Get returns the session for a device, or nil if absent.
func (r *Registry) Get(udid string) *model.DeviceSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[udid]
	if !ok {
		return nil
	}
	copied := *session
	return &copied
}

// Delete removes a session if present.
func (r *Registry) Delete(udid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, udid)
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
