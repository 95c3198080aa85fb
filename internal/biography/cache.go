package biography

import (
	"context"
	"sync"
)

// ClaimCache remembers raw claim time tokens keyed by (property, entity) so
// repeat lookups within a run cost no network round-trip. A cached empty
// token records a known "no such fact" so misses are idempotent too.
type ClaimCache interface {
	Get(ctx context.Context, property, entityID string) (token string, ok bool, err error)
	Set(ctx context.Context, property, entityID, token string) error
}

// MemoryClaimCache is a process-local ClaimCache. It is the default when no
// Redis is configured and the fixture of choice in tests.
type MemoryClaimCache struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryClaimCache() *MemoryClaimCache {
	return &MemoryClaimCache{tokens: make(map[string]string)}
}

func (c *MemoryClaimCache) Get(_ context.Context, property, entityID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	token, ok := c.tokens[property+"|"+entityID]
	return token, ok, nil
}

func (c *MemoryClaimCache) Set(_ context.Context, property, entityID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[property+"|"+entityID] = token
	return nil
}
