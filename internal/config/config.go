// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.boodongsan/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Storage: backend selection, PostgreSQL connection (see storage.go)
//   - Cache: Redis connection URL, credential, default TTL
//   - RAG: embedding dimension, embedded-engine working directory
//
// Security: sensitive data (passwords) are never logged; MarshalJSON masks
// them explicitly.
// Validation: range checks in validation.go with sentinel errors for
// errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRedisURL indicates the Redis URL is malformed.
	ErrInvalidRedisURL = errors.New("invalid Redis URL")

	// ErrInvalidCacheTTL indicates the default cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrInvalidEmbeddingDimension indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidWorkingDir indicates the embedded-backend working directory is invalid.
	ErrInvalidWorkingDir = errors.New("invalid RAG working directory")

	// ErrInvalidWorkspace indicates the embedded-backend workspace name is invalid.
	ErrInvalidWorkspace = errors.New("invalid RAG workspace")
)

const (
	// DefaultEmbeddingDimension matches the Titan Embed v2 output width.
	// The previous embedding model produced 1536-wide vectors; changing this
	// value requires dropping and regenerating every stored vector (see
	// db/migrations), so it is a deployment-level invariant, not a tunable.
	DefaultEmbeddingDimension = 1024

	// DefaultCacheTTL is the default cache entry lifetime in seconds.
	DefaultCacheTTL = 3600

	// MaxEmbeddingDimension bounds configuration mistakes; pgvector supports
	// up to 16000 dimensions but no supported embedder exceeds 4096.
	MaxEmbeddingDimension = 4096
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// Storage backend selection: "postgresql-vector" or "embedded".
	// Validated by storage.New, not here, so the selector owns the
	// fail-fast error naming the supported set.
	StorageBackend string `mapstructure:"storage_backend" json:"storage_backend"`

	// PostgreSQL connection (see storage.go for DSN/URL builders)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Cache configuration
	RedisURL      string `mapstructure:"redis_url" json:"redis_url"`
	RedisPassword string `mapstructure:"redis_password" json:"redis_password"` // SENSITIVE: masked in MarshalJSON
	CacheTTL      int    `mapstructure:"cache_ttl" json:"cache_ttl"`           // seconds

	// RAG configuration
	EmbeddingDimension int    `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	RAGWorkingDir      string `mapstructure:"rag_working_dir" json:"rag_working_dir"`
	RAGWorkspace       string `mapstructure:"rag_workspace" json:"rag_workspace"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".boodongsan")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("storage_backend", "postgresql-vector")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "boodongsan")
	viper.SetDefault("postgres_password", "boodongsan_dev_password")
	viper.SetDefault("postgres_db_name", "boodongsan")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Cache defaults
	viper.SetDefault("redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache_ttl", DefaultCacheTTL)

	// RAG defaults
	viper.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	viper.SetDefault("rag_working_dir", "./rag_storage")
	viper.SetDefault("rag_workspace", "default")
}

// bindEnvVariables binds environment variables explicitly.
// DATABASE_URL is read directly in parseDatabaseURL, not via Viper.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("storage_backend", "STORAGE_BACKEND")
	mustBind("redis_url", "REDIS_URL")
	mustBind("redis_password", "REDIS_PASSWORD")
	mustBind("cache_ttl", "CACHE_TTL")
	mustBind("embedding_dimension", "EMBEDDING_DIMENSION")
	mustBind("rag_working_dir", "RAG_WORKING_DIR")
	mustBind("rag_workspace", "RAG_WORKSPACE")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real password fragments.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked to prevent substring
// matching; longer secrets keep the first and last 2 chars for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - PostgresPassword
//   - RedisPassword
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.RedisPassword = maskSecret(a.RedisPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
