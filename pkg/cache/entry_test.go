package cache

import (
	"testing"
	"time"

	"github.com/fetchkit/fetchkit/pkg/request"
)

func TestEntry_IsStale(t *testing.T) {
	tests := []struct {
		name      string
		age       time.Duration
		cacheTime time.Duration
		want      bool
	}{
		{"fresh entry", 10 * time.Second, time.Minute, false},
		{"stale entry", 2 * time.Minute, time.Minute, true},
		{"zero window is always stale", time.Millisecond, 0, true},
		{"just written", 0, time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{
				Response:  request.NewSuccess(nil, 200),
				Timestamp: time.Now().Add(-tt.age),
			}
			if got := entry.IsStale(tt.cacheTime); got != tt.want {
				t.Errorf("IsStale(%v) = %v, want %v", tt.cacheTime, got, tt.want)
			}
		})
	}
}

func TestEntry_Age(t *testing.T) {
	entry := &Entry{Timestamp: time.Now().Add(-time.Minute)}

	age := entry.Age()
	if age < 59*time.Second || age > 61*time.Second {
		t.Errorf("Age() = %v, want about one minute", age)
	}
}
