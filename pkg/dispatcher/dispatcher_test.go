package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fetchkit/fetchkit/internal/testutil"
	"github.com/fetchkit/fetchkit/pkg/adapter"
	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/request"
)

func newTestDispatcher(t *testing.T, a *testutil.ScriptedAdapter) *Dispatcher {
	t.Helper()

	d, err := New(DefaultConfig(a))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func waitResolved(t *testing.T, d *Dispatcher, queueKey string) {
	t.Helper()
	testutil.WaitFor(t, 2*time.Second, func() bool {
		return d.QueueSize(queueKey) == 0
	}, "queue "+queueKey+" should drain")
}

func TestNew_RequiresAdapter(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() without an adapter should fail")
	}
}

func TestAdd_ResolvesAndCaches(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte(`{"ok":true}`))
	d := newTestDispatcher(t, a)

	desc := &request.Descriptor{Method: "GET", Endpoint: "/users", CacheTime: time.Minute}
	id := d.Add(desc)
	if id == "" {
		t.Fatal("Add() returned empty id")
	}

	waitResolved(t, d, request.QueueKey(desc))

	entry, ok := d.Cache().Get(context.Background(), request.CacheKey(desc, false))
	if !ok {
		t.Fatal("settled envelope should be cached")
	}
	if !entry.Response.Success || string(entry.Response.Data) != `{"ok":true}` {
		t.Errorf("cached envelope = %+v", entry.Response)
	}
	if a.Calls() != 1 {
		t.Errorf("adapter calls = %d, want 1", a.Calls())
	}
}

func TestAdd_DeduplicatesInFlight(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 50 * time.Millisecond
	d := newTestDispatcher(t, a)

	desc := &request.Descriptor{Method: "GET", Endpoint: "/users", Deduplicate: true}
	id1 := d.Add(desc)
	id2 := d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users", Deduplicate: true})

	if id1 != id2 {
		t.Errorf("duplicate adds returned distinct ids: %s vs %s", id1, id2)
	}

	waitResolved(t, d, request.QueueKey(desc))
	if a.Calls() != 1 {
		t.Errorf("adapter calls = %d, want 1 for deduplicated adds", a.Calls())
	}
}

func TestAdd_DistinctParamsAreNotDeduplicated(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 50 * time.Millisecond
	d := newTestDispatcher(t, a)

	id1 := d.Add(&request.Descriptor{
		Method: "GET", Endpoint: "/users/:id",
		Params: map[string]string{"id": "1"}, Deduplicate: true, Concurrent: true,
	})
	id2 := d.Add(&request.Descriptor{
		Method: "GET", Endpoint: "/users/:id",
		Params: map[string]string{"id": "2"}, Deduplicate: true, Concurrent: true,
	})

	if id1 == id2 {
		t.Error("requests with distinct params must not collapse")
	}

	waitResolved(t, d, "GET_/users/:id")
	if a.Calls() != 2 {
		t.Errorf("adapter calls = %d, want 2", a.Calls())
	}
}

func TestQueue_NonConcurrentRunsOneAtATime(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 30 * time.Millisecond
	d := newTestDispatcher(t, a)

	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users"})
	d.Add(&request.Descriptor{Method: "POST", BaseURL: "ignored", Endpoint: "/users", Data: []byte("a")})

	// Same endpoint, same method: shares a queue.
	desc := &request.Descriptor{Method: "GET", Endpoint: "/users", QueryParams: map[string]any{"page": 2}}
	d.Add(desc)

	waitResolved(t, d, "GET_/users")
	waitResolved(t, d, "POST_/users")

	if got := a.MaxParallel(); got > 2 {
		t.Errorf("MaxParallel() = %d; distinct queues may overlap but one queue must serialize", got)
	}
	if a.Calls() != 3 {
		t.Errorf("adapter calls = %d, want 3", a.Calls())
	}
}

func TestQueue_SameQueueSerializes(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 30 * time.Millisecond
	d := newTestDispatcher(t, a)

	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/orders", QueryParams: map[string]any{"page": 1}})
	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/orders", QueryParams: map[string]any{"page": 2}})

	waitResolved(t, d, "GET_/orders")

	if got := a.MaxParallel(); got != 1 {
		t.Errorf("MaxParallel() = %d, want 1 for a non-concurrent queue", got)
	}
	if a.Calls() != 2 {
		t.Errorf("adapter calls = %d, want 2", a.Calls())
	}
}

func TestQueue_ConcurrentRunsInParallel(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 60 * time.Millisecond
	d := newTestDispatcher(t, a)

	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/orders", QueryParams: map[string]any{"page": 1}, Concurrent: true})
	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/orders", QueryParams: map[string]any{"page": 2}, Concurrent: true})

	testutil.WaitFor(t, time.Second, func() bool {
		return a.MaxParallel() == 2
	}, "both requests should run simultaneously")

	waitResolved(t, d, "GET_/orders")
}

func TestAdd_CancelableReplacesRunning(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 200 * time.Millisecond
	d := newTestDispatcher(t, a)

	var mu sync.Mutex
	var aborted []string
	abortKey := request.AbortKey("GET", "", "/search", true)
	d.OnAbort(abortKey, func(ev events.Event) {
		if ab, ok := ev.Payload.(AbortEvent); ok {
			mu.Lock()
			aborted = append(aborted, ab.RequestID)
			mu.Unlock()
		}
	})

	first := d.Add(&request.Descriptor{
		Method: "GET", Endpoint: "/search",
		QueryParams: map[string]any{"q": "a"}, Cancelable: true,
	})
	testutil.WaitFor(t, time.Second, func() bool { return d.RunningCount("GET_/search") == 1 },
		"first request should start")

	second := d.Add(&request.Descriptor{
		Method: "GET", Endpoint: "/search",
		QueryParams: map[string]any{"q": "ab"}, Cancelable: true,
	})
	if first == second {
		t.Fatal("replacement must be a new request")
	}

	mu.Lock()
	gotAborts := len(aborted)
	firstAborted := len(aborted) > 0 && aborted[0] == first
	mu.Unlock()

	if gotAborts != 1 || !firstAborted {
		t.Errorf("aborted = %v, want exactly [%s]", aborted, first)
	}
	if got := d.RunningCount("GET_/search"); got != 1 {
		t.Errorf("RunningCount() = %d after replacement, want 1", got)
	}

	waitResolved(t, d, "GET_/search")
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("recovered"))
	a.FailCount = 2
	d := newTestDispatcher(t, a)

	desc := &request.Descriptor{
		Method: "GET", Endpoint: "/flaky",
		Retry: 2, RetryTime: 10 * time.Millisecond,
	}
	d.Add(desc)
	waitResolved(t, d, "GET_/flaky")

	if a.Calls() != 3 {
		t.Errorf("adapter calls = %d, want 3 (1 initial + 2 retries)", a.Calls())
	}
	entry, ok := d.Cache().Get(context.Background(), request.CacheKey(desc, false))
	if !ok || !entry.Response.Success {
		t.Fatalf("final envelope should be the success, got %+v", entry)
	}
	if entry.Retries != 2 {
		t.Errorf("Entry.Retries = %d, want 2", entry.Retries)
	}
}

func TestRetry_ExhaustionCachesLastFailure(t *testing.T) {
	a := testutil.NewScriptedAdapter(nil)
	a.FailCount = 100
	d := newTestDispatcher(t, a)

	desc := &request.Descriptor{
		Method: "GET", Endpoint: "/down",
		Retry: 2, RetryTime: 5 * time.Millisecond, CacheTime: time.Minute,
	}
	d.Add(desc)
	waitResolved(t, d, "GET_/down")

	if a.Calls() != 3 {
		t.Errorf("adapter calls = %d, want 3", a.Calls())
	}

	entry, ok := d.Cache().Get(context.Background(), request.CacheKey(desc, false))
	if !ok {
		t.Fatal("final failure must be cached")
	}
	if entry.Response.Success {
		t.Error("cached envelope should be a failure")
	}
	if got := request.ClassOf(entry.Response.Error); got != request.FailureTransport {
		t.Errorf("failure class = %s, want %s", got, request.FailureTransport)
	}
}

func TestTimeout_ProducesTimeoutClass(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("too late"))
	a.Delay = 1500 * time.Millisecond
	d := newTestDispatcher(t, a)

	var mu sync.Mutex
	var got *ResponseEvent
	desc := &request.Descriptor{Method: "GET", Endpoint: "/slow", Timeout: 10 * time.Millisecond}
	d.OnResponse(request.CacheKey(desc, false), func(ev events.Event) {
		if resp, ok := ev.Payload.(ResponseEvent); ok {
			mu.Lock()
			got = &resp
			mu.Unlock()
		}
	})

	d.Add(desc)
	testutil.WaitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, "timed-out request should settle")

	mu.Lock()
	defer mu.Unlock()
	if got.Response.Success {
		t.Error("timed-out request must fail")
	}
	if got.Response.Data != nil {
		t.Errorf("Data = %q, want nil", got.Response.Data)
	}
	if class := request.ClassOf(got.Response.Error); class != request.FailureTimeout {
		t.Errorf("failure class = %s, want %s", class, request.FailureTimeout)
	}
}

func TestErrorlessFailureStaysTransportClass(t *testing.T) {
	// An adapter violating the contract by reporting failure without an
	// error, on a descriptor with a timeout. Releasing the timeout context
	// must not turn the failure into a terminal cancellation.
	failing := adapter.Func(func(context.Context, *request.Descriptor) request.Response {
		return request.Response{Success: false, Status: 500, Extra: map[string]string{}}
	})
	d, err := New(DefaultConfig(failing))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(d.Stop)

	desc := &request.Descriptor{Method: "GET", Endpoint: "/broken", Timeout: time.Second}
	ev, err := d.Submit(context.Background(), desc)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if ev.Response.Error == nil {
		t.Fatal("normalization should synthesize an error for errorless failures")
	}
	if class := request.ClassOf(ev.Response.Error); class != request.FailureTransport {
		t.Errorf("failure class = %s, want %s", class, request.FailureTransport)
	}
}

func TestOffline_ShortCircuitsWithoutAdapterCall(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	d := newTestDispatcher(t, a)
	d.AppState().SetOnline(false)

	var mu sync.Mutex
	var got *ResponseEvent
	desc := &request.Descriptor{Method: "GET", Endpoint: "/users", Retry: 3, RetryTime: time.Millisecond}
	d.OnResponse(request.CacheKey(desc, false), func(ev events.Event) {
		if resp, ok := ev.Payload.(ResponseEvent); ok {
			mu.Lock()
			got = &resp
			mu.Unlock()
		}
	})

	d.Add(desc)
	testutil.WaitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, "offline request should settle immediately")

	if a.Calls() != 0 {
		t.Errorf("adapter calls = %d, want 0 while offline", a.Calls())
	}

	mu.Lock()
	defer mu.Unlock()
	if !got.IsOffline {
		t.Error("ResponseEvent.IsOffline should be set")
	}
	if got.Retries != 0 {
		t.Errorf("offline short circuit consumed %d retries, want 0", got.Retries)
	}
	if class := request.ClassOf(got.Response.Error); class != request.FailureOffline {
		t.Errorf("failure class = %s, want %s", class, request.FailureOffline)
	}
}

func TestOffline_ConsumesRetryWhenConfigured(t *testing.T) {
	a := testutil.NewScriptedAdapter(nil)
	cfg := DefaultConfig(a)
	cfg.OfflineConsumesRetry = true
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(d.Stop)
	d.AppState().SetOnline(false)

	var mu sync.Mutex
	var got *ResponseEvent
	desc := &request.Descriptor{Method: "GET", Endpoint: "/users", Retry: 3}
	d.OnResponse(request.CacheKey(desc, false), func(ev events.Event) {
		if resp, ok := ev.Payload.(ResponseEvent); ok {
			mu.Lock()
			got = &resp
			mu.Unlock()
		}
	})

	d.Add(desc)
	testutil.WaitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, "offline request should settle")

	mu.Lock()
	defer mu.Unlock()
	if got.Retries != 1 {
		t.Errorf("Retries = %d, want 1 with OfflineConsumesRetry", got.Retries)
	}
}

func TestLoading_TransitionsOnce(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 30 * time.Millisecond
	d := newTestDispatcher(t, a)

	var mu sync.Mutex
	var states []bool
	d.OnLoading("GET_/users", func(ev events.Event) {
		if le, ok := ev.Payload.(LoadingEvent); ok {
			mu.Lock()
			states = append(states, le.Loading)
			mu.Unlock()
		}
	})

	// Two back-to-back requests in one queue should report a single
	// loading period, not one per element.
	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users", QueryParams: map[string]any{"page": 1}})
	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users", QueryParams: map[string]any{"page": 2}})

	waitResolved(t, d, "GET_/users")
	testutil.WaitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2
	}, "loading should return to false")

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false}
	if len(states) != len(want) {
		t.Fatalf("loading transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("loading transitions = %v, want %v", states, want)
		}
	}
}

func TestCancelRunningRequest(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 300 * time.Millisecond
	d := newTestDispatcher(t, a)

	var mu sync.Mutex
	var abortedID string
	id := d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users"})
	d.OnAbortByID(id, func(ev events.Event) {
		if ab, ok := ev.Payload.(AbortEvent); ok {
			mu.Lock()
			abortedID = ab.RequestID
			mu.Unlock()
		}
	})

	testutil.WaitFor(t, time.Second, func() bool { return d.RunningCount("GET_/users") == 1 },
		"request should start")

	d.CancelRunningRequest("GET_/users", id)

	if got := d.RunningCount("GET_/users"); got != 0 {
		t.Errorf("RunningCount() = %d after cancel, want 0", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if abortedID != id {
		t.Errorf("abort event for %q, want %q", abortedID, id)
	}
}

func TestCancelQueue_DropsPendingElements(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = 300 * time.Millisecond
	d := newTestDispatcher(t, a)

	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users", QueryParams: map[string]any{"page": 1}})
	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users", QueryParams: map[string]any{"page": 2}})
	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users", QueryParams: map[string]any{"page": 3}})

	testutil.WaitFor(t, time.Second, func() bool { return d.RunningCount("GET_/users") == 1 },
		"head should start")

	d.CancelQueue("GET_/users")

	if got := d.QueueSize("GET_/users"); got != 0 {
		t.Errorf("QueueSize() = %d after CancelQueue, want 0", got)
	}

	// The queued elements never reach the adapter.
	time.Sleep(50 * time.Millisecond)
	if a.Calls() != 1 {
		t.Errorf("adapter calls = %d, want 1", a.Calls())
	}
}

func TestStop_RejectsFurtherWork(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	d := newTestDispatcher(t, a)
	d.Stop()

	d.Add(&request.Descriptor{Method: "GET", Endpoint: "/users"})
	time.Sleep(30 * time.Millisecond)

	if a.Calls() != 0 {
		t.Errorf("adapter calls = %d after Stop, want 0", a.Calls())
	}
}

func TestSubmit_ReturnsSettledEnvelope(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("hello"))
	d := newTestDispatcher(t, a)

	ev, err := d.Submit(context.Background(), &request.Descriptor{Method: "GET", Endpoint: "/greet"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !ev.Response.Success || string(ev.Response.Data) != "hello" {
		t.Errorf("Submit() envelope = %+v", ev.Response)
	}
}

func TestSubmit_HonorsContext(t *testing.T) {
	a := testutil.NewScriptedAdapter([]byte("x"))
	a.Delay = time.Second
	d := newTestDispatcher(t, a)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Submit(ctx, &request.Descriptor{Method: "GET", Endpoint: "/slow"})
	if err == nil {
		t.Fatal("Submit() should fail when its context expires")
	}
}
