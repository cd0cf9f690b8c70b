package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fetchkit/fetchkit/pkg/request"
)

func descriptor(endpoint string) *request.Descriptor {
	return &request.Descriptor{Method: "GET", Endpoint: endpoint}
}

func TestMock_Fixed(t *testing.T) {
	mock := NewMock(nil)
	d := descriptor("/users")
	mock.Register(request.CacheKey(d, false), Fixed(request.NewSuccess([]byte("x"), 200)))

	for i := 0; i < 3; i++ {
		resp := mock.Execute(context.Background(), d)
		if !resp.Success || string(resp.Data) != "x" {
			t.Fatalf("call %d: got %+v", i, resp)
		}
	}
	if got := mock.Calls(request.CacheKey(d, false)); got != 3 {
		t.Errorf("Calls() = %d, want 3", got)
	}
}

func TestMock_SequenceCycles(t *testing.T) {
	mock := NewMock(nil)
	d := descriptor("/users")
	mock.Register(request.CacheKey(d, false), Sequence(
		request.NewSuccess([]byte("a"), 200),
		request.NewSuccess([]byte("b"), 200),
	))

	want := []string{"a", "b", "a", "b"}
	for i, w := range want {
		resp := mock.Execute(context.Background(), d)
		if string(resp.Data) != w {
			t.Errorf("call %d: Data = %q, want %q", i, resp.Data, w)
		}
	}
}

func TestMock_Computed(t *testing.T) {
	mock := NewMock(nil)
	d := descriptor("/users/:id")
	d.Params = map[string]string{"id": "42"}
	mock.Register(request.CacheKey(d, false), Computed(func(d *request.Descriptor) request.Response {
		return request.NewSuccess([]byte(d.Params["id"]), 200)
	}))

	resp := mock.Execute(context.Background(), d)
	if string(resp.Data) != "42" {
		t.Errorf("Data = %q, want %q", resp.Data, "42")
	}
}

func TestMock_ComputedCtx(t *testing.T) {
	mock := NewMock(nil)
	d := descriptor("/slow")
	mock.Register(request.CacheKey(d, false), ComputedCtx(func(ctx context.Context, _ *request.Descriptor) request.Response {
		select {
		case <-ctx.Done():
			return request.NewFailure(ctx.Err(), 0)
		case <-time.After(10 * time.Millisecond):
			return request.NewSuccess([]byte("done"), 200)
		}
	}))

	resp := mock.Execute(context.Background(), d)
	if string(resp.Data) != "done" {
		t.Errorf("Data = %q, want %q", resp.Data, "done")
	}
}

func TestMock_Fallback(t *testing.T) {
	mock := NewMock(Fixed(request.NewSuccess([]byte("fallback"), 200)))

	resp := mock.Execute(context.Background(), descriptor("/unregistered"))
	if string(resp.Data) != "fallback" {
		t.Errorf("unregistered descriptor should hit the fallback, got %+v", resp)
	}

	// Nil fallback produces empty success envelopes.
	resp = NewMock(nil).Execute(context.Background(), descriptor("/unregistered"))
	if !resp.Success || resp.Status != 200 {
		t.Errorf("default fallback should succeed, got %+v", resp)
	}
}

func TestMock_DelayRespectsCancellation(t *testing.T) {
	mock := NewMock(nil)
	mock.SetDelay(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	resp := mock.Execute(ctx, descriptor("/users"))
	if time.Since(start) > 100*time.Millisecond {
		t.Error("canceled context should short-circuit the delay")
	}
	if resp.Success {
		t.Error("canceled call must fail")
	}
	if !errors.Is(resp.Error, context.Canceled) {
		t.Errorf("Error = %v, want context.Canceled", resp.Error)
	}
}

func TestMock_TotalCalls(t *testing.T) {
	mock := NewMock(nil)
	mock.Execute(context.Background(), descriptor("/a"))
	mock.Execute(context.Background(), descriptor("/a"))
	mock.Execute(context.Background(), descriptor("/b"))

	if got := mock.TotalCalls(); got != 3 {
		t.Errorf("TotalCalls() = %d, want 3", got)
	}
}

func TestFunc_ImplementsAdapter(t *testing.T) {
	var a Adapter = Func(func(_ context.Context, _ *request.Descriptor) request.Response {
		return request.NewSuccess(nil, 204)
	})
	if resp := a.Execute(context.Background(), descriptor("/x")); resp.Status != 204 {
		t.Errorf("Status = %d, want 204", resp.Status)
	}
}
