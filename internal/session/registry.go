package session

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry holds at most one open session per device.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Open starts a session for opts.Device.
func (r *Registry) Open(opts Options, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[opts.Device]; ok {
		return nil, fmt.Errorf("%w: device %q", ErrSessionExists, opts.Device)
	}
	s, err := New(opts, now)
	if err != nil {
		return nil, err
	}
	r.sessions[opts.Device] = s
	return s, nil
}

func (r *Registry) Get(device string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[device]
	return s, ok
}

// Close removes and returns the session of device.
func (r *Registry) Close(device string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[device]
	delete(r.sessions, device)
	return s, ok
}

// Devices lists the devices with an open session.
func (r *Registry) Devices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for d := range r.sessions {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
