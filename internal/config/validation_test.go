package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes Validate; tests mutate
// single fields to probe individual checks.
func validConfig() *Config {
	return &Config{
		StorageBackend:     "postgresql-vector",
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "boodongsan",
		PostgresPassword:   "secret",
		PostgresDBName:     "boodongsan",
		PostgresSSLMode:    "disable",
		RedisURL:           "redis://localhost:6379/0",
		CacheTTL:           3600,
		EmbeddingDimension: 1024,
		RAGWorkingDir:      "./rag_storage",
		RAGWorkspace:       "default",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_Nil(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Fatalf("Validate() = %v, want ErrConfigNil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty host", func(c *Config) { c.PostgresHost = "  " }, ErrInvalidPostgresHost},
		{"port too low", func(c *Config) { c.PostgresPort = 0 }, ErrInvalidPostgresPort},
		{"port too high", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty db name", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad ssl mode", func(c *Config) { c.PostgresSSLMode = "mandatory" }, ErrInvalidPostgresSSLMode},
		{"empty redis url", func(c *Config) { c.RedisURL = "" }, ErrInvalidRedisURL},
		{"bad redis scheme", func(c *Config) { c.RedisURL = "http://localhost:6379" }, ErrInvalidRedisURL},
		{"redis url without host", func(c *Config) { c.RedisURL = "redis://" }, ErrInvalidRedisURL},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }, ErrInvalidCacheTTL},
		{"negative cache ttl", func(c *Config) { c.CacheTTL = -10 }, ErrInvalidCacheTTL},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }, ErrInvalidEmbeddingDimension},
		{"huge dimension", func(c *Config) { c.EmbeddingDimension = 100000 }, ErrInvalidEmbeddingDimension},
		{"empty working dir", func(c *Config) { c.RAGWorkingDir = " " }, ErrInvalidWorkingDir},
		{"empty workspace", func(c *Config) { c.RAGWorkspace = "" }, ErrInvalidWorkspace},
		{"workspace with slash", func(c *Config) { c.RAGWorkspace = "a/b" }, ErrInvalidWorkspace},
		{"workspace dotdot", func(c *Config) { c.RAGWorkspace = ".." }, ErrInvalidWorkspace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_RedissScheme(t *testing.T) {
	cfg := validConfig()
	cfg.RedisURL = "rediss://cache.example.com:6380/0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil for rediss:// URL", err)
	}
}
