// Package adapter defines the contract the dispatcher uses to perform one
// request, and a mock implementation for exercising dispatcher and cache
// behavior without a transport.
package adapter

import (
	"context"

	"github.com/fetchkit/fetchkit/pkg/request"
)

// Adapter performs one request and returns a normalized envelope. Failures
// are reported through the envelope's Error and Success fields, never by
// panicking or by a second return value. Cancellation and timeouts arrive
// through ctx; a well-behaved adapter stops work when ctx is done and
// returns an envelope carrying the context error.
type Adapter interface {
	Execute(ctx context.Context, d *request.Descriptor) request.Response
}

// Func adapts a plain function to the Adapter interface.
type Func func(ctx context.Context, d *request.Descriptor) request.Response

// Execute implements Adapter.
func (f Func) Execute(ctx context.Context, d *request.Descriptor) request.Response {
	return f(ctx, d)
}
