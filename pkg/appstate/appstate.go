// Package appstate tracks application connectivity and focus state. The
// dispatcher reads the online flag for its offline short circuit; refresh
// policies built on top subscribe to the transition events.
package appstate

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/logging"
)

// Manager holds the current online and focus flags and publishes transitions
// on the shared emitter. A new manager starts online and focused.
type Manager struct {
	mu      sync.RWMutex
	online  bool
	focused bool
	emitter *events.Emitter
	logger  zerolog.Logger
}

// NewManager creates a manager publishing on the given emitter.
func NewManager(emitter *events.Emitter) *Manager {
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	return &Manager{
		online:  true,
		focused: true,
		emitter: emitter,
		logger:  logging.Component("appstate"),
	}
}

// IsOnline reports the current connectivity flag.
func (m *Manager) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// IsFocused reports the current focus flag.
func (m *Manager) IsFocused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focused
}

// SetOnline updates the connectivity flag, emitting on transitions only.
func (m *Manager) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info().Bool("online", online).Msg("Connectivity changed")
	if online {
		m.emitter.Emit(events.ScopeOnline, nil)
	} else {
		m.emitter.Emit(events.ScopeOffline, nil)
	}
}

// SetFocused updates the focus flag, emitting on transitions only.
func (m *Manager) SetFocused(focused bool) {
	m.mu.Lock()
	changed := m.focused != focused
	m.focused = focused
	m.mu.Unlock()

	if !changed {
		return
	}

	if focused {
		m.emitter.Emit(events.ScopeFocus, nil)
	} else {
		m.emitter.Emit(events.ScopeBlur, nil)
	}
}

// OnOnline subscribes to offline-to-online transitions.
func (m *Manager) OnOnline(handler events.Handler) events.Unsubscribe {
	return m.emitter.Subscribe(events.ScopeOnline, handler)
}

// OnOffline subscribes to online-to-offline transitions.
func (m *Manager) OnOffline(handler events.Handler) events.Unsubscribe {
	return m.emitter.Subscribe(events.ScopeOffline, handler)
}

// OnFocus subscribes to blur-to-focus transitions.
func (m *Manager) OnFocus(handler events.Handler) events.Unsubscribe {
	return m.emitter.Subscribe(events.ScopeFocus, handler)
}

// OnBlur subscribes to focus-to-blur transitions.
func (m *Manager) OnBlur(handler events.Handler) events.Unsubscribe {
	return m.emitter.Subscribe(events.ScopeBlur, handler)
}
