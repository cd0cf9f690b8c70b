// Package testutil provides testing utilities for fetchkit.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fetchkit/fetchkit/pkg/request"
)

// ScriptedAdapter is a configurable adapter for dispatcher tests. It tracks
// invocations, optionally delays, and fails a configurable number of times
// before succeeding.
type ScriptedAdapter struct {
	mu sync.Mutex

	// Response is returned once FailCount invocations have failed.
	Response request.Response

	// FailCount is how many leading invocations fail with a transport error.
	FailCount int

	// Delay is slept before resolving, respecting context cancellation.
	Delay time.Duration

	calls       int
	concurrent  int
	maxParallel int
}

// NewScriptedAdapter creates an adapter that always succeeds with the given
// payload.
func NewScriptedAdapter(data []byte) *ScriptedAdapter {
	return &ScriptedAdapter{Response: request.NewSuccess(data, 200)}
}

// Execute implements adapter.Adapter.
func (a *ScriptedAdapter) Execute(ctx context.Context, _ *request.Descriptor) request.Response {
	a.mu.Lock()
	a.calls++
	call := a.calls
	a.concurrent++
	if a.concurrent > a.maxParallel {
		a.maxParallel = a.concurrent
	}
	delay := a.Delay
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.concurrent--
		a.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return request.NewFailure(ctx.Err(), 0)
		case <-time.After(delay):
		}
	}

	if err := ctx.Err(); err != nil {
		return request.NewFailure(err, 0)
	}

	a.mu.Lock()
	failing := call <= a.FailCount
	resp := a.Response
	a.mu.Unlock()

	if failing {
		return request.NewFailure(request.NewTransportFailure(errors.New("scripted failure")), 500)
	}
	return resp
}

// Calls returns the number of Execute invocations so far.
func (a *ScriptedAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// MaxParallel returns the highest number of simultaneous Execute
// invocations observed.
func (a *ScriptedAdapter) MaxParallel() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxParallel
}
