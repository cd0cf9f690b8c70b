// Package dispatcher implements the request queue engine: per-queue
// scheduling, deduplication, retries with backoff, cancellation, and the
// lifecycle events framework bindings subscribe to.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetchkit/fetchkit/internal/backoff"
	"github.com/fetchkit/fetchkit/pkg/adapter"
	"github.com/fetchkit/fetchkit/pkg/appstate"
	"github.com/fetchkit/fetchkit/pkg/cache"
	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/logging"
	"github.com/fetchkit/fetchkit/pkg/request"
)

// Config holds the dispatcher configuration.
type Config struct {
	// Adapter performs requests. Required.
	Adapter adapter.Adapter

	// Cache receives every settled envelope. Optional; a nil cache gets an
	// in-memory store sharing the dispatcher's emitter.
	Cache *cache.Store

	// Emitter carries lifecycle events. Optional.
	Emitter *events.Emitter

	// AppState supplies the online flag for the offline short circuit.
	// Optional; a nil manager is created online.
	AppState *appstate.Manager

	// Backoff selects the retry delay strategy. Defaults to a constant
	// delay of the descriptor's RetryTime.
	Backoff backoff.Strategy

	// MaxBackoff caps retry delays. Zero means no cap.
	MaxBackoff time.Duration

	// OfflineConsumesRetry makes an offline short circuit count against the
	// request's retry budget. Off by default: offline failures resolve
	// immediately and the budget stays intact for a manual re-add.
	OfflineConsumesRetry bool
}

// DefaultConfig returns a safe default configuration around an adapter.
func DefaultConfig(a adapter.Adapter) Config {
	return Config{
		Adapter:    a,
		Backoff:    backoff.Constant{},
		MaxBackoff: 30 * time.Second,
	}
}

// Dispatcher owns one logical queue per queue key and decides whether an
// incoming request runs immediately, is deduplicated against an in-flight
// request, or waits its turn. Queues are created on first use and never
// destroyed; an empty queue stays addressable.
type Dispatcher struct {
	mu     sync.Mutex
	queues map[string]*queue

	adapter  adapter.Adapter
	cache    *cache.Store
	emitter  *events.Emitter
	appState *appstate.Manager
	strategy backoff.Strategy
	cfg      Config
	logger   zerolog.Logger

	nextID  atomic.Uint64
	baseCtx context.Context
	stop    context.CancelFunc

	// pending holds event emissions and cache writes deferred until the
	// dispatcher lock is released, so subscribers can safely call back in.
	pending []func()
}

// deferLocked schedules a side effect to run after the lock is released.
func (d *Dispatcher) deferLocked(fn func()) {
	d.pending = append(d.pending, fn)
}

// drainLocked takes the pending side effects. Callers run them after
// unlocking, in order.
func (d *Dispatcher) drainLocked() []func() {
	fns := d.pending
	d.pending = nil
	return fns
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// New creates a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	store := cfg.Cache
	if store == nil {
		store = cache.NewStore(nil, emitter)
	}
	state := cfg.AppState
	if state == nil {
		state = appstate.NewManager(emitter)
	}
	strategy := cfg.Backoff
	if strategy == nil {
		strategy = backoff.Constant{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		queues:   make(map[string]*queue),
		adapter:  cfg.Adapter,
		cache:    store,
		emitter:  emitter,
		appState: state,
		strategy: strategy,
		cfg:      cfg,
		logger:   logging.Component("dispatcher"),
		baseCtx:  ctx,
		stop:     cancel,
	}, nil
}

// Cache returns the cache store the dispatcher writes into.
func (d *Dispatcher) Cache() *cache.Store { return d.cache }

// Emitter returns the event emitter the dispatcher publishes on.
func (d *Dispatcher) Emitter() *events.Emitter { return d.emitter }

// AppState returns the connectivity manager.
func (d *Dispatcher) AppState() *appstate.Manager { return d.appState }

// Add enqueues a request and returns its id. State transitions happen
// synchronously before Add returns: deduplication, cancelable replacement,
// and the decision to start running are all settled by the time the caller
// can observe queue state. Only the adapter invocation is asynchronous.
func (d *Dispatcher) Add(desc *request.Descriptor) string {
	d.mu.Lock()
	id := d.addLocked(desc)
	fns := d.drainLocked()
	d.mu.Unlock()

	runAll(fns)
	return id
}

func (d *Dispatcher) addLocked(desc *request.Descriptor) string {
	queueKey := request.QueueKey(desc)
	q := d.ensureQueueLocked(queueKey)
	cacheKey := request.CacheKey(desc, false)

	// Deduplicate against an equivalent in-flight or queued request.
	if desc.Deduplicate {
		if existing := q.findByCacheKey(cacheKey); existing != nil {
			d.logger.Debug().
				Str("queue_key", queueKey).
				Str("request_id", existing.ID).
				Msg("Request deduplicated")
			dedupTotal.WithLabelValues(queueKey).Inc()
			return existing.ID
		}
	}

	// A cancelable request aborts and replaces the running one instead of
	// queueing behind it.
	if desc.Cancelable {
		for _, running := range q.runningElements() {
			d.cancelElementLocked(q, running)
		}
	}

	el := &element{
		ID:         fmt.Sprintf("req-%d", d.nextID.Add(1)),
		Descriptor: desc,
		Timestamp:  time.Now(),
		cacheKey:   cacheKey,
		queueKey:   queueKey,
		abortKey:   request.AbortKey(desc.Method, desc.BaseURL, desc.Endpoint, desc.Cancelable),
	}
	q.elements = append(q.elements, el)

	d.logger.Debug().
		Str("queue_key", queueKey).
		Str("request_id", el.ID).
		Bool("concurrent", desc.Concurrent).
		Msg("Request added")

	d.flushQueueLocked(q)
	return el.ID
}

// CancelRunningRequest aborts one in-flight request. The element is removed
// from queue bookkeeping immediately; a late adapter result is ignored. In a
// non-concurrent queue the next queued element is promoted.
func (d *Dispatcher) CancelRunningRequest(queueKey, requestID string) {
	d.mu.Lock()
	if q, ok := d.queues[queueKey]; ok {
		if el, ok := q.running[requestID]; ok {
			d.cancelElementLocked(q, el)
			d.flushQueueLocked(q)
		}
	}
	fns := d.drainLocked()
	d.mu.Unlock()

	runAll(fns)
}

// CancelQueue aborts every running request in a queue and drops its pending
// elements.
func (d *Dispatcher) CancelQueue(queueKey string) {
	d.mu.Lock()
	if q, ok := d.queues[queueKey]; ok {
		for _, el := range q.runningElements() {
			d.cancelElementLocked(q, el)
		}
		q.elements = nil
		d.setLoadingLocked(q)
	}
	fns := d.drainLocked()
	d.mu.Unlock()

	runAll(fns)
}

// RunningCount returns the number of running requests in a queue.
func (d *Dispatcher) RunningCount(queueKey string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[queueKey]; ok {
		return len(q.running)
	}
	return 0
}

// QueueSize returns the number of elements (queued and running) in a queue.
func (d *Dispatcher) QueueSize(queueKey string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.queues[queueKey]; ok {
		return len(q.elements)
	}
	return 0
}

// OnLoading subscribes to loading-state changes of a queue.
func (d *Dispatcher) OnLoading(queueKey string, handler events.Handler) events.Unsubscribe {
	return d.emitter.Subscribe(events.LoadingScope(queueKey), handler)
}

// OnResponse subscribes to settled responses of a cache key.
func (d *Dispatcher) OnResponse(cacheKey string, handler events.Handler) events.Unsubscribe {
	return d.emitter.Subscribe(events.ResponseScope(cacheKey), handler)
}

// OnAbort subscribes to abort notifications of an abort key.
func (d *Dispatcher) OnAbort(abortKey string, handler events.Handler) events.Unsubscribe {
	return d.emitter.Subscribe(events.AbortScope(abortKey), handler)
}

// OnAbortByID subscribes to the abort notification of one request id.
func (d *Dispatcher) OnAbortByID(requestID string, handler events.Handler) events.Unsubscribe {
	return d.emitter.Subscribe(events.AbortByIDScope(requestID), handler)
}

// Stop aborts all in-flight requests and stops retry timers.
func (d *Dispatcher) Stop() {
	d.stop()

	d.mu.Lock()
	for _, q := range d.queues {
		for _, el := range q.runningElements() {
			d.cancelElementLocked(q, el)
		}
		q.elements = nil
		d.setLoadingLocked(q)
	}
	fns := d.drainLocked()
	d.mu.Unlock()

	runAll(fns)
}

func (d *Dispatcher) ensureQueueLocked(queueKey string) *queue {
	q, ok := d.queues[queueKey]
	if !ok {
		q = newQueue(queueKey)
		d.queues[queueKey] = q
	}
	return q
}
