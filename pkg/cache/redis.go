package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fetchkit/fetchkit/pkg/logging"
)

// redisKeyPrefix namespaces fetchkit entries in a shared Redis instance.
const redisKeyPrefix = "fetchkit:cache:"

// RedisBacking stores entries in Redis so cache state can be shared across
// processes. Entries are JSON-encoded and expire server-side after their
// staleness window, with a floor of one minute so callers can still read the
// last error shortly after it became stale.
type RedisBacking struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisBacking creates a Redis-backed store.
func NewRedisBacking(client *redis.Client) *RedisBacking {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisBacking{
		client: client,
		logger: logging.Component("cache-redis"),
	}
}

// Get implements Backing. Redis errors are absorbed and reported as absent;
// cache reads never fail.
func (b *RedisBacking) Get(ctx context.Context, key string) (*Entry, bool) {
	data, err := b.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			backingErrors.WithLabelValues("get").Inc()
			b.logger.Warn().Err(err).Str("key", key).Msg("Redis get failed")
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		backingErrors.WithLabelValues("get").Inc()
		b.logger.Warn().Err(err).Str("key", key).Msg("Corrupt cache entry dropped")
		b.Delete(ctx, key)
		return nil, false
	}

	return &entry, true
}

// Set implements Backing.
func (b *RedisBacking) Set(ctx context.Context, key string, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		backingErrors.WithLabelValues("set").Inc()
		b.logger.Warn().Err(err).Str("key", key).Msg("Marshal cache entry failed")
		return
	}

	ttl := entry.CacheTime
	if ttl < time.Minute {
		ttl = time.Minute
	}

	if err := b.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		backingErrors.WithLabelValues("set").Inc()
		b.logger.Warn().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

// Delete implements Backing.
func (b *RedisBacking) Delete(ctx context.Context, key string) {
	if err := b.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		backingErrors.WithLabelValues("delete").Inc()
		b.logger.Warn().Err(err).Str("key", key).Msg("Redis delete failed")
	}
}

// Keys implements Backing.
func (b *RedisBacking) Keys(ctx context.Context) []string {
	var keys []string
	iter := b.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(redisKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		backingErrors.WithLabelValues("keys").Inc()
		b.logger.Warn().Err(err).Msg("Redis scan failed")
	}
	return keys
}

// Clear implements Backing.
func (b *RedisBacking) Clear(ctx context.Context) {
	for _, key := range b.Keys(ctx) {
		b.Delete(ctx, key)
	}
}
