package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/fetchkit/fetchkit/pkg/request"
)

// Resolver produces the envelope for one mock invocation. The call index
// starts at 0 and counts prior invocations of the same registration.
type Resolver interface {
	Resolve(ctx context.Context, d *request.Descriptor, call int) request.Response
}

// Fixed returns the same envelope for every call.
func Fixed(resp request.Response) Resolver {
	return fixedResolver{resp: resp}
}

type fixedResolver struct {
	resp request.Response
}

func (r fixedResolver) Resolve(context.Context, *request.Descriptor, int) request.Response {
	return r.resp
}

// Sequence cycles through the given envelopes: call N returns element
// N mod len.
func Sequence(resps ...request.Response) Resolver {
	return sequenceResolver{resps: resps}
}

type sequenceResolver struct {
	resps []request.Response
}

func (r sequenceResolver) Resolve(_ context.Context, _ *request.Descriptor, call int) request.Response {
	return r.resps[call%len(r.resps)]
}

// Computed derives the envelope from the outgoing descriptor.
func Computed(fn func(d *request.Descriptor) request.Response) Resolver {
	return computedResolver{fn: fn}
}

type computedResolver struct {
	fn func(d *request.Descriptor) request.Response
}

func (r computedResolver) Resolve(_ context.Context, d *request.Descriptor, _ int) request.Response {
	return r.fn(d)
}

// ComputedCtx derives the envelope from the outgoing descriptor with access
// to the invocation context, for resolvers that block or simulate latency.
func ComputedCtx(fn func(ctx context.Context, d *request.Descriptor) request.Response) Resolver {
	return computedCtxResolver{fn: fn}
}

type computedCtxResolver struct {
	fn func(ctx context.Context, d *request.Descriptor) request.Response
}

func (r computedCtxResolver) Resolve(ctx context.Context, d *request.Descriptor, _ int) request.Response {
	return r.fn(ctx, d)
}

// Mock is an Adapter that resolves requests from registered resolvers
// instead of a transport. It substitutes for the real adapter without
// altering any dispatcher behavior, which keeps the dispatcher
// transport-agnostic and testable.
type Mock struct {
	mu        sync.Mutex
	resolvers map[string]Resolver
	calls     map[string]int
	fallback  Resolver
	delay     time.Duration
}

// NewMock creates a mock adapter. The fallback resolver handles descriptors
// with no registration; a nil fallback produces empty success envelopes.
func NewMock(fallback Resolver) *Mock {
	if fallback == nil {
		fallback = Fixed(request.NewSuccess(nil, 200))
	}
	return &Mock{
		resolvers: make(map[string]Resolver),
		calls:     make(map[string]int),
		fallback:  fallback,
	}
}

// Register installs a resolver for every descriptor sharing the given cache
// key.
func (m *Mock) Register(cacheKey string, r Resolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[cacheKey] = r
}

// SetDelay makes every Execute call sleep before resolving, respecting
// context cancellation.
func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns how many times descriptors with the given cache key were
// executed.
func (m *Mock) Calls(cacheKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cacheKey]
}

// TotalCalls returns the total number of Execute invocations.
func (m *Mock) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Execute implements Adapter.
func (m *Mock) Execute(ctx context.Context, d *request.Descriptor) request.Response {
	key := request.CacheKey(d, false)

	m.mu.Lock()
	resolver, ok := m.resolvers[key]
	if !ok {
		resolver = m.fallback
	}
	call := m.calls[key]
	m.calls[key]++
	delay := m.delay
	m.mu.Unlock()

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

	return resolver.Resolve(ctx, d, call)
}
