package cache

import "context"

// Backing is the pluggable storage behind a Store. Implementations must be
// safe for concurrent use. The in-memory backing is the default; a Redis
// backing is available for processes that share cache state.
type Backing interface {
	// Get returns the entry for a key, or false when absent.
	Get(ctx context.Context, key string) (*Entry, bool)

	// Set stores an entry under a key, replacing any previous one.
	Set(ctx context.Context, key string, entry *Entry)

	// Delete removes a key. Unknown keys are a no-op.
	Delete(ctx context.Context, key string)

	// Keys returns a snapshot of all stored keys.
	Keys(ctx context.Context) []string

	// Clear removes all entries.
	Clear(ctx context.Context)
}
