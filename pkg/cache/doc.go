// Package cache implements the response cache behind the dispatcher.
//
// The store keeps one Entry per cache key. Entries hold the last response
// envelope plus the bookkeeping of the attempt that produced it (retries,
// cancellation and offline flags, timestamp) and are replaced whole on every
// completion of a request sharing the key.
//
// # Basic Usage
//
//	store := cache.NewStore(nil, emitter) // in-memory backing
//
//	store.Set(ctx, key, &cache.Entry{
//		Response:  resp,
//		CacheTime: 30 * time.Second,
//	})
//
//	if entry, ok := store.Get(ctx, key); ok && !entry.IsStale(30*time.Second) {
//		// serve from cache
//	}
//
// # Backing stores
//
// The default backing is an in-process sharded map. For shared cache state
// across processes use the Redis backing:
//
//	backing := cache.NewRedisBacking(redisClient)
//	store := cache.NewStore(backing, emitter)
//
// Backing errors never surface to callers; a failing backing degrades to
// cache misses.
//
// # Revalidation
//
// Revalidate notifies listeners that their data should be refetched. It does
// not mutate stored entries. Matchers may be exact keys or '*' wildcard
// patterns:
//
//	store.OnRevalidate("GET_/users/42_", func(events.Event) { refetch() })
//	store.Revalidate("GET_/users/*")
//
// # Metrics
//
// The store exports Prometheus metrics: fetchkit_cache_hits_total,
// fetchkit_cache_misses_total, fetchkit_cache_sets_total,
// fetchkit_cache_evictions_total, fetchkit_cache_revalidations_total, and
// fetchkit_cache_backing_errors_total{operation}.
package cache
