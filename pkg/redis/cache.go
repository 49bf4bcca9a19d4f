package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache provides typed caching with a Redis backend. When Redis is
// disabled it degrades to an in-process TTL map so scanners keep their
// result-cache contract without infrastructure.
type Cache struct {
	client *Client
	prefix string

	mu    sync.RWMutex
	local map[string]localEntry
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		local:  make(map[string]localEntry),
	}
}

// Get retrieves a cached value. Returns false on miss or expiry.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)

	if !c.client.Enabled() {
		c.mu.RLock()
		entry, ok := c.local[fullKey]
		c.mu.RUnlock()
		if !ok || time.Now().After(entry.expiresAt) {
			return false, nil
		}
		if err := json.Unmarshal(entry.data, dest); err != nil {
			return false, fmt.Errorf("cache unmarshal failed: %w", err)
		}
		return true, nil
	}

	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		// Key not found is not an error
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)

	if !c.client.Enabled() {
		c.mu.Lock()
		c.local[fullKey] = localEntry{data: data, expiresAt: time.Now().Add(ttl)}
		c.sweepLocked()
		c.mu.Unlock()
		return nil
	}

	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)

	if !c.client.Enabled() {
		c.mu.Lock()
		delete(c.local, fullKey)
		c.mu.Unlock()
		return nil
	}

	return c.client.Redis().Del(ctx, fullKey).Err()
}

// sweepLocked drops expired local entries. Caller holds c.mu.
func (c *Cache) sweepLocked() {
	now := time.Now()
	for k, e := range c.local {
		if now.After(e.expiresAt) {
			delete(c.local, k)
		}
	}
}

// Common cache key generators
func ScanResultKey(scanner string) string {
	return fmt.Sprintf("scan:result:%s", scanner)
}

func StrategyKey(opportunityID string) string {
	return fmt.Sprintf("strategy:%s", opportunityID)
}
