package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultConnectTimeout bounds the initial Redis connect attempt so a dead
// cache degrades quickly instead of stalling every request behind a
// hanging dial.
const DefaultConnectTimeout = 3 * time.Second

// Manager owns the single cache connection for the process.
//
// State machine: Disconnected (initial) -> Connected-Live on a successful
// dial, or Connected-Degraded on connection failure, serving from the
// in-process substitute. The degradation is logged once at warning level
// and is otherwise invisible to callers. Close releases the connection
// exactly once and returns to Disconnected, so a later use re-attempts a
// live connection rather than staying pinned to the substitute.
type Manager struct {
	url            string
	password       string
	connectTimeout time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	conn     connection
	degraded bool
}

// NewManager creates a Manager. No connection is opened until first use.
func NewManager(url, password string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		url:            url,
		password:       password,
		connectTimeout: DefaultConnectTimeout,
		logger:         logger,
	}
}

// Connection returns the live connection, lazily connecting on first use.
// It never fails on an unreachable cache: the in-process substitute takes
// over transparently. The returned error covers only caller-side problems
// (context already canceled).
func (m *Manager) Connection(ctx context.Context) (connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return m.conn, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	conn, err := dialRedis(dialCtx, m.url, m.password, m.connectTimeout)
	if err != nil {
		m.logger.Warn("redis connection failed, falling back to in-process cache",
			"url", m.url, "error", err)
		m.conn = newMemoryConn()
		m.degraded = true
		return m.conn, nil
	}

	m.logger.Info("connected to redis", "url", m.url)
	m.conn = conn
	m.degraded = false
	return m.conn, nil
}

// Degraded reports whether the manager is serving from the in-process
// substitute. False while still Disconnected.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.degraded
}

// Close releases the underlying connection exactly once and resets the
// state to Disconnected. Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	m.degraded = false
	return err
}
