package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/fetchkit/fetchkit/pkg/cache"
	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/request"
)

// performRequest drives one adapter attempt of an element. It runs on its
// own goroutine; all queue mutations happen back under the dispatcher lock
// once the adapter call settles.
func (d *Dispatcher) performRequest(q *queue, el *element, ctx context.Context) {
	// A single element is never dispatched to the adapter twice
	// concurrently.
	if !el.inFlight.CompareAndSwap(false, true) {
		return
	}

	desc := el.Descriptor

	// Offline short circuit: skip the adapter entirely and resolve with an
	// offline-flagged failure. No retry is attempted; callers may re-add
	// after reconnect.
	if !d.appState.IsOnline() {
		d.mu.Lock()
		el.inFlight.Store(false)
		if !el.canceled && !el.Resolved {
			if d.cfg.OfflineConsumesRetry {
				el.Retries++
			}
			d.logger.Debug().
				Str("request_id", el.ID).
				Str("queue_key", q.key).
				Msg("Request short-circuited while offline")
			resp := request.NewFailure(request.NewOfflineFailure(), 0)
			d.finishLocked(q, el, resp, finishOffline)
		}
		fns := d.drainLocked()
		d.mu.Unlock()
		runAll(fns)
		return
	}

	attemptCtx := ctx
	cancelTimeout := func() {}
	if desc.Timeout > 0 {
		attemptCtx, cancelTimeout = context.WithTimeout(ctx, desc.Timeout)
	}

	start := time.Now()
	resp := d.adapter.Execute(attemptCtx, desc)

	// Snapshot the context error before releasing the timeout context:
	// cancelTimeout flips attemptCtx.Err() to Canceled, which would
	// misclassify an errorless failure as a terminal cancellation.
	ctxErr := attemptCtx.Err()
	cancelTimeout()
	requestDuration.WithLabelValues(q.key).Observe(time.Since(start).Seconds())

	// Map context-level terminations onto the failure taxonomy when the
	// adapter surfaced a raw context error or nothing at all.
	if !resp.Success {
		resp.Error = normalizeFailure(resp.Error, ctxErr)
	}

	d.mu.Lock()
	d.settleLocked(q, el, resp)
	fns := d.drainLocked()
	d.mu.Unlock()

	runAll(fns)
}

// settleLocked applies the outcome of one adapter attempt to queue state.
func (d *Dispatcher) settleLocked(q *queue, el *element, resp request.Response) {
	el.inFlight.Store(false)
	desc := el.Descriptor

	// A canceled element was already removed from bookkeeping; its late
	// result is dropped.
	if el.canceled || el.Resolved {
		d.logger.Debug().
			Str("request_id", el.ID).
			Msg("Dropping late result of canceled request")
		return
	}

	if resp.Success {
		requestsTotal.WithLabelValues(q.key, "success").Inc()
		d.finishLocked(q, el, resp, finishNone)
		return
	}

	class := request.ClassOf(resp.Error)
	if request.Retriable(class) && el.Retries < desc.Retry {
		el.Retries++
		retriesTotal.WithLabelValues(q.key, string(class)).Inc()

		delay := d.strategy.Delay(el.Retries-1, desc.RetryTime, d.cfg.MaxBackoff)
		d.logger.Debug().
			Str("request_id", el.ID).
			Str("error_class", string(class)).
			Int("attempt", el.Retries).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		// The element stays part of the queue and keeps its running slot
		// while the timer waits; it never counts as a second concurrent
		// request.
		time.AfterFunc(delay, func() {
			d.retryElement(q, el)
		})
		return
	}

	if request.Retriable(class) && desc.Retry > 0 {
		retryExhaustedTotal.WithLabelValues(q.key).Inc()
		d.logger.Warn().
			Str("request_id", el.ID).
			Int("attempts", el.Retries+1).
			Msg("Retry attempts exhausted")
	}

	requestsTotal.WithLabelValues(q.key, "failure").Inc()
	d.finishLocked(q, el, resp, finishNone)
}

// retryElement re-dispatches an element after its backoff delay.
func (d *Dispatcher) retryElement(q *queue, el *element) {
	d.mu.Lock()
	if el.canceled || el.Resolved || d.baseCtx.Err() != nil {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(d.baseCtx)
	el.cancel = cancel
	d.mu.Unlock()

	d.performRequest(q, el, ctx)
}

type finishFlag int

const (
	finishNone finishFlag = iota
	finishCanceled
	finishOffline
)

// finishLocked settles an element: cache write, response event, removal,
// and promotion of the next queued element.
func (d *Dispatcher) finishLocked(q *queue, el *element, resp request.Response, flag finishFlag) {
	el.Resolved = true
	if el.running {
		inFlightGauge.WithLabelValues(q.key).Dec()
	}
	el.running = false
	q.remove(el)

	// The envelope is cached on success and on final failure alike, so the
	// last error stays readable from the cache.
	entry := &cache.Entry{
		Response:   resp,
		Timestamp:  time.Now(),
		CacheTime:  el.Descriptor.CacheTime,
		Retries:    el.Retries,
		IsCanceled: flag == finishCanceled,
		IsOffline:  flag == finishOffline,
	}
	ev := ResponseEvent{
		RequestID:  el.ID,
		Response:   resp,
		Retries:    el.Retries,
		IsCanceled: flag == finishCanceled,
		IsOffline:  flag == finishOffline,
		Timestamp:  entry.Timestamp,
	}
	scope := events.ResponseScope(el.cacheKey)
	cacheKey := el.cacheKey
	d.deferLocked(func() {
		d.cache.Set(context.Background(), cacheKey, entry)
		d.emitter.Emit(scope, ev)
	})

	// Promote before recomputing loading state so back-to-back work does
	// not report a spurious idle transition.
	d.flushQueueLocked(q)
	d.setLoadingLocked(q)
}

// cancelElementLocked aborts an in-flight element: the adapter is signaled,
// abort events fire, and the element leaves queue bookkeeping immediately.
func (d *Dispatcher) cancelElementLocked(q *queue, el *element) {
	el.canceled = true
	if el.cancel != nil {
		el.cancel()
	}

	abortsTotal.WithLabelValues(q.key).Inc()
	d.logger.Debug().
		Str("request_id", el.ID).
		Str("queue_key", q.key).
		Msg("Request aborted")

	ev := AbortEvent{RequestID: el.ID, QueueKey: q.key, AbortKey: el.abortKey}
	idScope := events.AbortByIDScope(el.ID)
	keyScope := events.AbortScope(el.abortKey)
	d.deferLocked(func() {
		d.emitter.Emit(idScope, ev)
		d.emitter.Emit(keyScope, ev)
	})

	resp := request.NewFailure(request.NewCanceledFailure(), 0)
	requestsTotal.WithLabelValues(q.key, "canceled").Inc()
	d.finishLocked(q, el, resp, finishCanceled)
}

// normalizeFailure maps raw context errors onto the failure taxonomy and
// guarantees a failure envelope always carries an error. ctxErr is the
// attempt context's error as observed when the adapter returned.
func normalizeFailure(err error, ctxErr error) error {
	if err == nil {
		err = ctxErr
	}
	if err == nil {
		return request.NewTransportFailure(errors.New("adapter reported failure"))
	}

	var failure *request.Failure
	if errors.As(err, &failure) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return request.NewTimeoutFailure()
	case errors.Is(err, context.Canceled):
		return request.NewCanceledFailure()
	default:
		return request.NewTransportFailure(err)
	}
}
