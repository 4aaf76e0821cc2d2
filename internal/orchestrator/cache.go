// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// ResponseCache keeps raw completions keyed by model, version, prompt hash and
// seed, so re-screening a record under a fixed seed replays the same text.
type ResponseCache struct {
	c *ristretto.Cache[string, string]
}

// NewResponseCache creates a ristretto-backed cache bounded by maxCostBytes
// of completion text.
func NewResponseCache(maxCostBytes int64) (*ResponseCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: max(maxCostBytes/100, 1000), // ~10x expected items at ~1KB each
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating response cache: %w", err)
	}
	return &ResponseCache{c: c}, nil
}

func cacheKey(modelID, version, promptHash string, seed int64) string {
	return fmt.Sprintf("%s|%s|%s|%d", modelID, version, promptHash, seed)
}

// Get returns a cached completion.
func (rc *ResponseCache) Get(key string) (string, bool) {
	if rc == nil {
		return "", false
	}
	return rc.c.Get(key)
}

// Put stores a completion and waits for the write to become visible.
func (rc *ResponseCache) Put(key, raw string) {
	if rc == nil {
		return
	}
	rc.c.Set(key, raw, int64(len(raw)))
	rc.c.Wait()
}

// Close releases the cache's background goroutines.
func (rc *ResponseCache) Close() {
	if rc == nil {
		return
	}
	rc.c.Close()
}
