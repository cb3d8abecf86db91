// Package identity tracks the signed-in user. Authentication itself is an
// external service; this package only mirrors the current identity and
// turns changes into first-class triggers for user-scoped components.
package identity

import (
	"sync"
	"sync/atomic"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// Listener is invoked on identity changes. A nil user means logout.
type Listener func(user *models.User)

// Provider supplies the current identity and change notifications.
type Provider interface {
	// Current returns the signed-in user, or nil.
	Current() *models.User
	// Generation returns a counter bumped on every identity change.
	// Responses fetched under an older generation must be discarded.
	Generation() uint64
	// Subscribe registers a listener for identity changes.
	Subscribe(l Listener)
}

// Manager is the in-process identity provider. The presentation layer
// calls SetUser/Clear when the external auth session changes.
type Manager struct {
	mu         sync.RWMutex
	user       *models.User
	generation atomic.Uint64
	listeners  []Listener
}

// NewManager creates an identity manager with no signed-in user.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the signed-in user, or nil.
func (m *Manager) Current() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Generation returns the identity change counter.
func (m *Manager) Generation() uint64 {
	return m.generation.Load()
}

// Subscribe registers a listener for identity changes.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// SetUser records a login (or identity switch) and notifies listeners.
func (m *Manager) SetUser(user *models.User) {
	m.mu.Lock()
	m.user = user
	m.generation.Add(1)
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(user)
	}
}

// Clear records a logout and notifies listeners synchronously, so caches
// scoped to the old identity empty before Clear returns.
func (m *Manager) Clear() {
	m.SetUser(nil)
}
