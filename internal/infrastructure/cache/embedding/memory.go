package embedding

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	vector    []float32
	expiresAt time.Time
}

// MemoryTier is an in-process FastTier for single-node deployments and
// tests. Expired entries are dropped lazily on read.
type MemoryTier struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{entries: make(map[string]memoryEntry)}
}

func (t *MemoryTier) Get(_ context.Context, key string) ([]float32, bool) {
	t.mu.RLock()
	entry, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		t.mu.Lock()
		delete(t.entries, key)
		t.mu.Unlock()
		return nil, false
	}
	return entry.vector, true
}

func (t *MemoryTier) Put(_ context.Context, key string, vector []float32, ttl time.Duration) {
	t.mu.Lock()
	t.entries[key] = memoryEntry{vector: vector, expiresAt: time.Now().Add(ttl)}
	t.mu.Unlock()
}
