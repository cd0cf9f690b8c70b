package cache

import (
	"context"
	"hash/fnv"
	"sync"
)

const numShards = 16

// MemoryBacking is the default in-process backing store. Entries are spread
// across shards to keep lock contention low under concurrent dispatchers.
type MemoryBacking struct {
	shards [numShards]*memoryShard
}

type memoryShard struct {
	mu    sync.RWMutex
	store map[string]*Entry
}

// NewMemoryBacking creates an empty in-memory backing.
func NewMemoryBacking() *MemoryBacking {
	b := &MemoryBacking{}
	for i := range b.shards {
		b.shards[i] = &memoryShard{store: make(map[string]*Entry)}
	}
	return b
}

func (b *MemoryBacking) shard(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return b.shards[h.Sum32()%numShards]
}

// Get implements Backing.
func (b *MemoryBacking) Get(_ context.Context, key string) (*Entry, bool) {
	shard := b.shard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	entry, ok := shard.store[key]
	return entry, ok
}

// Set implements Backing.
func (b *MemoryBacking) Set(_ context.Context, key string, entry *Entry) {
	shard := b.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.store[key] = entry
}

// Delete implements Backing.
func (b *MemoryBacking) Delete(_ context.Context, key string) {
	shard := b.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.store, key)
}

// Keys implements Backing.
func (b *MemoryBacking) Keys(_ context.Context) []string {
	var keys []string
	for _, shard := range b.shards {
		shard.mu.RLock()
		for key := range shard.store {
			keys = append(keys, key)
		}
		shard.mu.RUnlock()
	}
	return keys
}

// Clear implements Backing.
func (b *MemoryBacking) Clear(_ context.Context) {
	for _, shard := range b.shards {
		shard.mu.Lock()
		shard.store = make(map[string]*Entry)
		shard.mu.Unlock()
	}
}
