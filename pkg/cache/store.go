package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetchkit/fetchkit/pkg/events"
	"github.com/fetchkit/fetchkit/pkg/logging"
)

// Store owns cache entries and the revalidation event channel. The
// dispatcher writes into it on request completion; framework bindings read
// from it and subscribe to its events. All operations are total: unknown
// keys produce "absent", never an error.
type Store struct {
	backing Backing
	emitter *events.Emitter
	logger  zerolog.Logger
}

// NewStore creates a cache store over a backing. A nil backing gets the
// in-memory default.
func NewStore(backing Backing, emitter *events.Emitter) *Store {
	if backing == nil {
		backing = NewMemoryBacking()
	}
	if emitter == nil {
		emitter = events.NewEmitter()
	}
	return &Store{
		backing: backing,
		emitter: emitter,
		logger:  logging.Component("cache"),
	}
}

// Emitter returns the event emitter the store publishes on.
func (s *Store) Emitter() *events.Emitter {
	return s.emitter
}

// Get returns the entry for a cache key, or false when absent.
func (s *Store) Get(ctx context.Context, cacheKey string) (*Entry, bool) {
	entry, ok := s.backing.Get(ctx, cacheKey)
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return entry, true
}

// Set replaces the entry under a cache key and emits a cache-updated event
// scoped to the key.
func (s *Store) Set(ctx context.Context, cacheKey string, entry *Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	s.backing.Set(ctx, cacheKey, entry)
	cacheSets.Inc()

	s.logger.Debug().
		Str("cache_key", cacheKey).
		Bool("success", entry.Response.Success).
		Dur("cache_time", entry.CacheTime).
		Msg("Cache entry written")

	s.emitter.Emit(events.CacheUpdateScope(cacheKey), entry)
}

// OnUpdate subscribes to cache-entry writes for a cache key.
func (s *Store) OnUpdate(cacheKey string, handler events.Handler) events.Unsubscribe {
	return s.emitter.Subscribe(events.CacheUpdateScope(cacheKey), handler)
}

// Delete removes the entry under a cache key.
func (s *Store) Delete(ctx context.Context, cacheKey string) {
	s.backing.Delete(ctx, cacheKey)
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) {
	s.backing.Clear(ctx)
}

// IsStale returns true when the key is absent or its entry is older than the
// staleness window.
func (s *Store) IsStale(ctx context.Context, cacheKey string, cacheTime time.Duration) bool {
	entry, ok := s.backing.Get(ctx, cacheKey)
	if !ok {
		return true
	}
	return entry.IsStale(cacheTime)
}

// OnRevalidate subscribes to revalidation triggers for a cache key.
func (s *Store) OnRevalidate(cacheKey string, handler events.Handler) events.Unsubscribe {
	return s.emitter.Subscribe(events.RevalidateScope(cacheKey), handler)
}

// Revalidate emits a revalidation event to every listener whose key matches
// the given exact key or '*' wildcard pattern. Stored data is not mutated:
// revalidation is a trigger, and listeners are expected to refetch, which
// overwrites the entry on completion.
func (s *Store) Revalidate(matcher string) {
	cacheRevalidations.Inc()
	s.logger.Debug().Str("matcher", matcher).Msg("Revalidation triggered")
	s.emitter.EmitMatch(events.RevalidateScope(matcher), matcher)
}

// StartGC sweeps stale entries every interval until ctx is done. Entries are
// removed once they outlive their own staleness window.
func (s *Store) StartGC(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Store) sweep(ctx context.Context) {
	removed := 0
	for _, key := range s.backing.Keys(ctx) {
		entry, ok := s.backing.Get(ctx, key)
		if !ok {
			continue
		}
		if entry.CacheTime > 0 && entry.IsStale(entry.CacheTime) {
			s.backing.Delete(ctx, key)
			removed++
		}
	}

	if removed > 0 {
		cacheEvictions.Add(float64(removed))
		s.logger.Debug().Int("removed", removed).Msg("GC sweep complete")
	}
}
