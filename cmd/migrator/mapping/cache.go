package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lyzr/pubmigrate/common/cache"
	"github.com/lyzr/pubmigrate/common/models"
)

const cacheKeyPrefix = "mapping:"

type cachedMapping struct {
	TargetSlug string            `json:"targetFieldSlug"`
	Confidence models.Confidence `json:"confidence"`
}

// MappingCache persists per-table field mappings between runs.
// It is a performance layer only and is safe to delete.
type MappingCache struct {
	store cache.Cache
	ttl   time.Duration
}

// NewMappingCache wraps store. A nil store disables caching.
func NewMappingCache(store cache.Cache, ttl time.Duration) *MappingCache {
	return &MappingCache{store: store, ttl: ttl}
}

// Load returns the cached mappings of a table keyed by field id
func (c *MappingCache) Load(ctx context.Context, table string) (map[string]Suggestion, error) {
	if c == nil || c.store == nil {
		return nil, nil
	}

	raw, found, err := c.store.Get(ctx, cacheKeyPrefix+table)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping cache for %s: %w", table, err)
	}
	if !found {
		return nil, nil
	}

	var entries map[string]cachedMapping
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode mapping cache for %s: %w", table, err)
	}

	out := make(map[string]Suggestion, len(entries))
	for fieldID, e := range entries {
		out[fieldID] = Suggestion{TargetSlug: e.TargetSlug, Confidence: e.Confidence}
	}
	return out, nil
}

// Store replaces the cached mappings of a table
func (c *MappingCache) Store(ctx context.Context, table string, mappings map[string]Suggestion) error {
	if c == nil || c.store == nil {
		return nil
	}

	entries := make(map[string]cachedMapping, len(mappings))
	for fieldID, s := range mappings {
		entries[fieldID] = cachedMapping{TargetSlug: s.TargetSlug, Confidence: s.Confidence}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode mapping cache for %s: %w", table, err)
	}
	if err := c.store.Set(ctx, cacheKeyPrefix+table, raw, c.ttl); err != nil {
		return fmt.Errorf("failed to write mapping cache for %s: %w", table, err)
	}
	return nil
}

// Forget drops the cached mappings of a table
func (c *MappingCache) Forget(ctx context.Context, table string) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, cacheKeyPrefix+table)
}
