package cache

import (
	"github.com/aretw0/introspection"
)

// CacheState exposes internal state for observability.
type CacheState struct {
	Subjects         int `json:"subjects"`
	Notes            int `json:"notes"`
	PendingMutations int `json:"pending_mutations"`
	Rollbacks        int `json:"rollbacks"`
}

// State implements introspection.Introspectable.
func (c *Cache) State() any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pending := 0
	for _, muts := range c.pending {
		pending += len(muts)
	}
	return CacheState{
		Subjects:         len(c.lists),
		Notes:            len(c.owners),
		PendingMutations: pending,
		Rollbacks:        c.rollbacks,
	}
}

// ComponentType implements introspection.Component.
func (c *Cache) ComponentType() string {
	return "cache"
}

var _ introspection.Introspectable = (*Cache)(nil)
var _ introspection.Component = (*Cache)(nil)
