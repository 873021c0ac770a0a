package config

import (
	"fmt"
	"net/url"
	"strings"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks all configuration values and returns the first problem
// found, wrapped around a package sentinel for errors.Is().
//
// The storage backend name is deliberately not validated here: the backend
// selector (storage.New) owns that check so its error can name both the
// offending value and the supported set.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range [1, 65535]", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if err := validateRedisURL(c.RedisURL); err != nil {
		return err
	}
	if c.CacheTTL < 1 {
		return fmt.Errorf("%w: %d (must be >= 1 second)", ErrInvalidCacheTTL, c.CacheTTL)
	}

	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > MaxEmbeddingDimension {
		return fmt.Errorf("%w: %d out of range [1, %d]",
			ErrInvalidEmbeddingDimension, c.EmbeddingDimension, MaxEmbeddingDimension)
	}

	if strings.TrimSpace(c.RAGWorkingDir) == "" {
		return fmt.Errorf("%w: working directory must not be empty", ErrInvalidWorkingDir)
	}
	if err := validateWorkspace(c.RAGWorkspace); err != nil {
		return err
	}

	return nil
}

// validateRedisURL checks the Redis URL scheme and host without connecting.
func validateRedisURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: URL must not be empty", ErrInvalidRedisURL)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRedisURL, err)
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return fmt.Errorf("%w: scheme must be redis:// or rediss://, got %q", ErrInvalidRedisURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidRedisURL)
	}
	return nil
}

// validateWorkspace rejects workspace names that would escape the working
// directory or produce surprising paths.
func validateWorkspace(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: workspace must not be empty", ErrInvalidWorkspace)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q must be a bare directory name", ErrInvalidWorkspace, name)
	}
	return nil
}
