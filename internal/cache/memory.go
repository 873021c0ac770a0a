package cache

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"
)

// memoryConn is the in-process substitute used when Redis is unreachable.
// It implements the same operation surface with Redis-compatible semantics
// (set-with-ttl, glob key patterns, atomic increment) purely in local
// memory. Nothing survives a process restart.
type memoryConn struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value string
	// expiresAt is zero when the entry never expires.
	expiresAt time.Time
}

var _ connection = (*memoryConn)(nil)

func newMemoryConn() *memoryConn {
	return &memoryConn{entries: make(map[string]memoryEntry)}
}

// Ping always succeeds: local memory is never unreachable.
func (c *memoryConn) Ping(_ context.Context) error {
	return nil
}

func (c *memoryConn) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.getLocked(key)
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *memoryConn) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *memoryConn) Delete(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, ok := c.getLocked(key); ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Keys enumerates live keys matching a Redis-style glob pattern.
func (c *memoryConn) Keys(_ context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := []string{}
	for key := range c.entries {
		if _, ok := c.getLocked(key); !ok {
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, err)
		}
		if matched {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// IncrBy atomically increments the integer stored at key, creating it at
// zero when absent, mirroring Redis INCRBY semantics.
func (c *memoryConn) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.getLocked(key)
	var current int64
	if ok {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer", key)
		}
		current = parsed
	}

	current += delta
	entry.value = strconv.FormatInt(current, 10)
	c.entries[key] = entry
	return current, nil
}

func (c *memoryConn) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.getLocked(key)
	if !ok {
		return false, nil
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	c.entries[key] = entry
	return true, nil
}

func (c *memoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}

// getLocked returns the entry at key, lazily evicting it when expired.
// Callers must hold mu.
func (c *memoryConn) getLocked(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
