// Package cache provides keyed storage of response envelopes with staleness
// tracking, garbage collection, and revalidation events.
package cache

import (
	"time"

	"github.com/fetchkit/fetchkit/pkg/request"
)

// Entry is a cached response together with the bookkeeping of the attempt
// that produced it. Entries are overwritten whole on every completion of a
// request sharing the key, never partially updated.
type Entry struct {
	// Response is the last envelope written under the key.
	Response request.Response `json:"response"`

	// Timestamp is when the entry was written.
	Timestamp time.Time `json:"timestamp"`

	// CacheTime is the staleness window of the entry.
	CacheTime time.Duration `json:"cache_time"`

	// Retries is how many retry attempts the producing request used.
	Retries int `json:"retries"`

	// IsCanceled marks entries written for aborted requests.
	IsCanceled bool `json:"is_canceled"`

	// IsOffline marks entries synthesized by the offline short circuit.
	IsOffline bool `json:"is_offline"`
}

// IsStale returns true when the entry is older than the given window.
func (e *Entry) IsStale(cacheTime time.Duration) bool {
	return time.Since(e.Timestamp) > cacheTime
}

// Age returns how long ago the entry was written.
func (e *Entry) Age() time.Duration {
	return time.Since(e.Timestamp)
}
