package dispatcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/request"
)

// element is one queued or running unit of work: a descriptor attempt plus
// its retry bookkeeping.
type element struct {
	ID         string
	Descriptor *request.Descriptor

	// Retries is the number of retry attempts consumed so far.
	Retries int

	// Timestamp is when the element was added.
	Timestamp time.Time

	// Resolved is set once the element settled (response, failure, abort).
	Resolved bool

	cacheKey string
	queueKey string
	abortKey string

	running  bool
	canceled bool
	cancel   context.CancelFunc

	// inFlight guards against dispatching one element to the adapter twice
	// concurrently.
	inFlight atomic.Bool
}

// queue is one logical FIFO of elements sharing a queue key. Elements stay
// in order of Add; running elements are also indexed by request id.
type queue struct {
	key      string
	elements []*element
	running  map[string]*element

	// loading mirrors whether the queue last reported a non-zero running
	// count, so loading events fire only on transitions.
	loading bool
}

func newQueue(key string) *queue {
	return &queue{
		key:     key,
		running: make(map[string]*element),
	}
}

// findByCacheKey returns the first unresolved element with the given derived
// key, running or queued.
func (q *queue) findByCacheKey(cacheKey string) *element {
	for _, el := range q.elements {
		if !el.Resolved && el.cacheKey == cacheKey {
			return el
		}
	}
	return nil
}

func (q *queue) runningElements() []*element {
	els := make([]*element, 0, len(q.running))
	for _, el := range q.elements {
		if el.running {
			els = append(els, el)
		}
	}
	return els
}

// remove drops an element from both the FIFO and the running index.
func (q *queue) remove(el *element) {
	for i, e := range q.elements {
		if e == el {
			q.elements = append(q.elements[:i:i], q.elements[i+1:]...)
			break
		}
	}
	delete(q.running, el.ID)
}

// flushQueueLocked starts every eligible element: all pending ones in a
// concurrent queue, the head in a non-concurrent queue with no running
// element. Invoked after add and remove operations rather than on a timer.
func (d *Dispatcher) flushQueueLocked(q *queue) {
	if d.baseCtx.Err() != nil {
		return
	}
	for _, el := range q.elements {
		if el.running || el.Resolved {
			continue
		}
		if !el.Descriptor.Concurrent && len(q.running) > 0 {
			break
		}
		d.startElementLocked(q, el)
	}
}

// startElementLocked transitions an element to running and dispatches it.
func (d *Dispatcher) startElementLocked(q *queue, el *element) {
	el.running = true
	q.running[el.ID] = el
	d.setLoadingLocked(q)
	inFlightGauge.WithLabelValues(q.key).Inc()

	ctx, cancel := context.WithCancel(d.baseCtx)
	el.cancel = cancel

	go d.performRequest(q, el, ctx)
}

// setLoadingLocked emits a loading-change event when the queue's running
// count crosses zero.
func (d *Dispatcher) setLoadingLocked(q *queue) {
	loading := len(q.running) > 0
	if loading == q.loading {
		return
	}
	q.loading = loading
	scope := events.LoadingScope(q.key)
	ev := LoadingEvent{QueueKey: q.key, Loading: loading}
	d.deferLocked(func() {
		d.emitter.Emit(scope, ev)
	})
}

// LoadingEvent reports a queue's loading-state transition.
type LoadingEvent struct {
	QueueKey string
	Loading  bool
}

// ResponseEvent carries a settled envelope and the details of the attempt
// that produced it.
type ResponseEvent struct {
	RequestID  string
	Response   request.Response
	Retries    int
	IsCanceled bool
	IsOffline  bool
	Timestamp  time.Time
}

// AbortEvent reports an aborted request.
type AbortEvent struct {
	RequestID string
	QueueKey  string
	AbortKey  string
}
