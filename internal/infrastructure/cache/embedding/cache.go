// Package embedding implements the two-tier embedding vector cache: a fast
// shared tier (Redis or in-process) in front of a durable on-disk tier. The
// cache is a pure optimization layer: every failure inside it degrades to a
// miss or a skipped write, never to an error for the caller.
package embedding

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/NotificacaoKnight/knight-agent-v3/internal/core/domain"
)

// FastTier is the shared low-latency tier. Implementations must treat
// backend failures as misses.
type FastTier interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Put(ctx context.Context, key string, vector []float32, ttl time.Duration)
}

// DurableTier survives process restarts and fast-tier evictions.
type DurableTier interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Put(ctx context.Context, key string, vector []float32, modelID string, metadata map[string]string)
	Entries() int64
}

type Cache struct {
	fast    FastTier
	durable DurableTier
	fastTTL time.Duration
	logger  *slog.Logger

	// Counters are process-local and approximate under concurrency.
	fastHits    atomic.Int64
	durableHits atomic.Int64
	misses      atomic.Int64
	saves       atomic.Int64
}

const defaultFastTTL = time.Hour

func New(fast FastTier, durable DurableTier, fastTTL time.Duration, logger *slog.Logger) *Cache {
	if fastTTL <= 0 {
		fastTTL = defaultFastTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fast:    fast,
		durable: durable,
		fastTTL: fastTTL,
		logger:  logger,
	}
}

// Get checks the fast tier first, then the durable tier. Durable hits are
// promoted back into the fast tier.
func (c *Cache) Get(ctx context.Context, text, modelID string) ([]float32, bool) {
	key := cacheKey(text, modelID)

	if c.fast != nil {
		if vector, ok := c.fast.Get(ctx, key); ok {
			c.fastHits.Add(1)
			return vector, true
		}
	}

	if c.durable != nil {
		if vector, ok := c.durable.Get(ctx, key); ok {
			c.durableHits.Add(1)
			if c.fast != nil {
				c.fast.Put(ctx, key, vector, c.fastTTL)
			}
			return vector, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put writes through to both tiers best-effort.
func (c *Cache) Put(ctx context.Context, text, modelID string, vector []float32, metadata map[string]string) {
	if len(vector) == 0 {
		return
	}
	key := cacheKey(text, modelID)

	if c.fast != nil {
		c.fast.Put(ctx, key, vector, c.fastTTL)
	}
	if c.durable != nil {
		c.durable.Put(ctx, key, vector, modelID, metadata)
	}
	c.saves.Add(1)
}

// GetMany looks texts up in order. found is aligned with texts (nil where
// absent) and missing lists the texts that need embedding, in input order.
func (c *Cache) GetMany(ctx context.Context, texts []string, modelID string) ([][]float32, []string) {
	found := make([][]float32, len(texts))
	var missing []string
	for i, text := range texts {
		if vector, ok := c.Get(ctx, text, modelID); ok {
			found[i] = vector
		} else {
			missing = append(missing, text)
		}
	}
	return found, missing
}

// PutMany stores text/vector pairs positionally and returns how many were
// written. Extra texts without a vector are skipped.
func (c *Cache) PutMany(ctx context.Context, texts []string, vectors [][]float32, modelID string) int {
	saved := 0
	for i, text := range texts {
		if i >= len(vectors) || len(vectors[i]) == 0 {
			continue
		}
		c.Put(ctx, text, modelID, vectors[i], nil)
		saved++
	}
	return saved
}

func (c *Cache) Stats(_ context.Context) domain.CacheStats {
	stats := domain.CacheStats{
		FastHits:    c.fastHits.Load(),
		DurableHits: c.durableHits.Load(),
		Misses:      c.misses.Load(),
		Saves:       c.saves.Load(),
	}
	if c.durable != nil {
		stats.DurableEntries = c.durable.Entries()
	}
	return stats
}
