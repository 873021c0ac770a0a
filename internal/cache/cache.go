package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Cache is the typed façade over the Manager: get/set/delete plus JSON
// helpers and a process-wide default TTL, overridable per call. Expiry is
// enforced by the backing store, not here.
type Cache struct {
	manager    *Manager
	defaultTTL time.Duration
	logger     *slog.Logger
}

// HealthStatus reports the cache's operating state for health endpoints.
type HealthStatus struct {
	Alive     bool      `json:"alive"`
	Degraded  bool      `json:"degraded"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a Cache façade. A defaultTTL <= 0 falls back to one hour.
func New(manager *Manager, defaultTTL time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Cache{
		manager:    manager,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Get returns the string value at key. A miss is (zero value, false, nil),
// not an error.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := c.manager.Connection(ctx)
	if err != nil {
		return "", false, err
	}
	return conn.Get(ctx, key)
}

// Set stores value at key. A ttl <= 0 means the configured default.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	conn, err := c.manager.Connection(ctx)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return conn.SetEx(ctx, key, value, ttl)
}

// Delete removes key, returning how many keys were removed (0 or 1).
func (c *Cache) Delete(ctx context.Context, key string) (int64, error) {
	conn, err := c.manager.Connection(ctx)
	if err != nil {
		return 0, err
	}
	return conn.Delete(ctx, key)
}

// GetJSON decodes the JSON value at key into dest. A missing key is
// (false, nil); dest is left untouched.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, found, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decoding cached value at %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it at key. The encoding
// preserves non-ASCII text as-is (no \u escaping), so Korean-language
// values round-trip byte-exact through the cache.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	encoded, err := marshalStable(value)
	if err != nil {
		return fmt.Errorf("encoding value for %q: %w", key, err)
	}
	return c.Set(ctx, key, encoded, ttl)
}

// IncrBy atomically increments the integer counter at key by delta,
// creating it at zero when absent, and returns the new value.
func (c *Cache) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	conn, err := c.manager.Connection(ctx)
	if err != nil {
		return 0, err
	}
	return conn.IncrBy(ctx, key, delta)
}

// Expire sets a fresh ttl on an existing key. Returns false when the key
// does not exist.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	conn, err := c.manager.Connection(ctx)
	if err != nil {
		return false, err
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	return conn.Expire(ctx, key, ttl)
}

// Health pings the current connection and reports the operating state.
func (c *Cache) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		URL:       c.manager.url,
		Timestamp: time.Now().UTC(),
	}

	conn, err := c.manager.Connection(ctx)
	if err != nil {
		return status
	}
	status.Alive = conn.Ping(ctx) == nil
	status.Degraded = c.manager.Degraded()
	return status
}

// Close releases the underlying connection exactly once.
func (c *Cache) Close() error {
	return c.manager.Close()
}

// marshalStable encodes v without HTML escaping so multibyte text is
// stored verbatim, and strips the encoder's trailing newline for a stable
// representation.
func marshalStable(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
