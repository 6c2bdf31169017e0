package run

import (
	"errors"
	"sync"
)

var (
	// ErrNoActiveRun is returned when a store operation needs a run.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunActive is returned when starting a run while one is active.
	ErrRunActive = errors.New("run already active")
)

// Store owns the run state. The travel goroutine writes it while moving and
// decision code writes it while travel is suspended; never both at once.
type Store interface {
	// Get returns a copy of the current state, ok=false when no run is active.
	Get() (State, bool)
	// Update applies fn to the live state atomically.
	Update(fn func(*State)) error
	IsActive() bool
	Start(initial State) error
	End() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	state  State
	active bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns a copy of the current state.
func (m *MemoryStore) Get() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return State{}, false
	}
	return m.state.Clone(), true
}

// Update applies fn to the live state under the store lock and re-clamps
// the meters.
func (m *MemoryStore) Update(fn func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ErrNoActiveRun
	}
	fn(&m.state)
	m.state.Detection = Clamp(m.state.Detection)
	m.state.SignalLock = Clamp(m.state.SignalLock)
	return nil
}

// IsActive reports whether a run is in progress.
func (m *MemoryStore) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Start begins a run with the given initial state.
func (m *MemoryStore) Start(initial State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return ErrRunActive
	}
	m.state = initial.Clone()
	m.state.Detection = Clamp(m.state.Detection)
	m.state.SignalLock = Clamp(m.state.SignalLock)
	m.active = true
	return nil
}

// End closes the active run.
func (m *MemoryStore) End() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ErrNoActiveRun
	}
	m.active = false
	return nil
}
