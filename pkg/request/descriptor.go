// Package request defines the request descriptor, the normalized response
// envelope, and the identity keys that tie the dispatcher and cache together.
package request

import (
	"time"
)

// Progress reports transfer progress at upload/download stages.
type Progress struct {
	Loaded int64
	Total  int64
}

// ProgressFunc receives progress notifications from the adapter.
type ProgressFunc func(Progress)

// Descriptor specifies one logical request: what to call and how the
// dispatcher should treat it. A descriptor is immutable per attempt; retry
// bookkeeping lives in the dispatcher's storage element, not here.
type Descriptor struct {
	// Method is the request method (e.g., "GET", "POST").
	Method string

	// BaseURL is the base address the adapter resolves Endpoint against.
	BaseURL string

	// Endpoint is the route template (e.g., "/users/:userId/orders").
	Endpoint string

	// Params are the path parameters substituted into Endpoint.
	Params map[string]string

	// QueryParams are the query parameters. Values may be any
	// JSON-serializable type; see key derivation for stringification rules.
	QueryParams map[string]any

	// Data is the request payload, if any.
	Data []byte

	// Retry is the number of retry attempts after the initial one.
	// Zero disables retries.
	Retry int

	// RetryTime is the base delay between retry attempts.
	RetryTime time.Duration

	// CacheTime is the staleness window for cached responses.
	CacheTime time.Duration

	// Timeout bounds a single adapter invocation. Zero means no timeout.
	Timeout time.Duration

	// Deduplicate collapses concurrent identical requests into one
	// in-flight operation.
	Deduplicate bool

	// Concurrent allows unlimited simultaneously running requests in the
	// descriptor's queue. When false the queue runs strictly FIFO.
	Concurrent bool

	// Cancelable makes a newly added request abort and replace the
	// currently running one instead of queueing behind it.
	Cancelable bool

	// OnUploadProgress and OnDownloadProgress receive transfer progress
	// from the adapter, when the adapter supports it.
	OnUploadProgress   ProgressFunc
	OnDownloadProgress ProgressFunc
}

// ResolvedEndpoint returns Endpoint with path parameters substituted.
// Unknown parameters are left in template form.
func (d *Descriptor) ResolvedEndpoint() string {
	return applyParams(d.Endpoint, d.Params)
}
