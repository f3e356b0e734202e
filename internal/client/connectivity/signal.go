// Package connectivity exposes an online/offline signal that the sync engine
// subscribes to.
package connectivity

import (
	"sync"
)

// Signal reports connectivity and notifies subscribers about transitions.
type Signal interface {
	Online() bool
	// Subscribe registers fn for transitions and returns a function that removes it.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Monitor is a Signal driven by explicit Set calls.
type Monitor struct {
	subs   map[int]func(bool)
	next   int
	online bool
	mu     sync.Mutex
}

var _ Signal = (*Monitor)(nil)

// NewMonitor creates a monitor in the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for state transitions.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Set updates the state. Subscribers are called only on an actual
// transition, outside the lock.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online

	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}
