// Package events implements the per-scope publish/subscribe bus used by the
// dispatcher and cache store to notify listeners of lifecycle transitions
// without coupling producers to consumers.
package events

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fetchkit/fetchkit/pkg/logging"
)

// Event is the payload delivered to subscribers.
type Event struct {
	// Scope is the scope the event was emitted on.
	Scope string

	// Payload is the event data; its concrete type depends on the scope.
	Payload any
}

// Handler consumes events for one subscription.
type Handler func(Event)

// Unsubscribe removes the subscription it was returned for. Calling it more
// than once is a no-op.
type Unsubscribe func()

type subscription struct {
	id      uint64
	handler Handler
}

// Emitter is an observer registry keyed by scope string. Handlers for one
// scope are invoked in subscription order; a panicking handler does not
// prevent delivery to the remaining handlers.
type Emitter struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger zerolog.Logger
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{
		subs:   make(map[string][]subscription),
		logger: logging.Component("events"),
	}
}

// Subscribe registers a handler for a scope and returns its disposer.
func (e *Emitter) Subscribe(scope string, handler Handler) Unsubscribe {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.subs[scope] = append(e.subs[scope], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.remove(scope, id)
		})
	}
}

func (e *Emitter) remove(scope string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subs[scope]
	for i, s := range subs {
		if s.id == id {
			e.subs[scope] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.subs[scope]) == 0 {
		delete(e.subs, scope)
	}
}

// Emit delivers an event to all subscribers of the exact scope. Emitting
// with no subscribers is a no-op.
func (e *Emitter) Emit(scope string, payload any) {
	e.mu.RLock()
	subs := make([]subscription, len(e.subs[scope]))
	copy(subs, e.subs[scope])
	e.mu.RUnlock()

	ev := Event{Scope: scope, Payload: payload}
	for _, s := range subs {
		e.deliver(s, ev)
	}
}

// EmitMatch delivers an event to every subscriber whose scope matches the
// pattern. A '*' in the pattern matches any run of characters; a pattern
// without wildcards is an exact comparison.
func (e *Emitter) EmitMatch(pattern string, payload any) {
	e.mu.RLock()
	var matched []subscription
	var scopes []string
	for scope, subs := range e.subs {
		if MatchScope(pattern, scope) {
			matched = append(matched, subs...)
			for range subs {
				scopes = append(scopes, scope)
			}
		}
	}
	e.mu.RUnlock()

	for i, s := range matched {
		e.deliver(s, Event{Scope: scopes[i], Payload: payload})
	}
}

// MatchScope reports whether a scope matches a pattern where '*' matches any
// run of characters, including separators.
func MatchScope(pattern, scope string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == scope
	}

	parts := strings.Split(pattern, "*")

	if !strings.HasPrefix(scope, parts[0]) {
		return false
	}
	scope = scope[len(parts[0]):]

	last := parts[len(parts)-1]
	middle := parts[1 : len(parts)-1]

	for _, part := range middle {
		idx := strings.Index(scope, part)
		if idx < 0 {
			return false
		}
		scope = scope[idx+len(part):]
	}

	return strings.HasSuffix(scope, last)
}

// ListenerCount returns the number of subscriptions for a scope.
func (e *Emitter) ListenerCount(scope string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[scope])
}

// deliver invokes one handler, isolating panics so one failing listener
// cannot break delivery to the rest.
func (e *Emitter) deliver(s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("scope", ev.Scope).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	s.handler(ev)
}
