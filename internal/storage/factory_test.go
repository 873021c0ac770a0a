package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/boodongsan/boodongsan/internal/config"
	"github.com/boodongsan/boodongsan/internal/log"
)

func backendConfig(name string) *config.Config {
	return &config.Config{
		StorageBackend:     name,
		PostgresHost:       "localhost",
		PostgresPort:       5432,
		PostgresUser:       "boodongsan",
		PostgresPassword:   "secret",
		PostgresDBName:     "boodongsan",
		PostgresSSLMode:    "disable",
		RedisURL:           "redis://localhost:6379/0",
		CacheTTL:           config.DefaultCacheTTL,
		EmbeddingDimension: config.DefaultEmbeddingDimension,
		RAGWorkingDir:      "./rag_storage",
		RAGWorkspace:       "default",
	}
}

func TestNew_PostgresVector(t *testing.T) {
	backend, err := New(backendConfig(BackendPostgresVector), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, ok := backend.(*PostgresBackend); !ok {
		t.Errorf("New() = %T, want *PostgresBackend", backend)
	}
}

func TestNew_Embedded(t *testing.T) {
	backend, err := New(backendConfig(BackendEmbedded), log.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, ok := backend.(*LocalBackend); !ok {
		t.Errorf("New() = %T, want *LocalBackend", backend)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	// Selection must fail at startup without touching the network or disk,
	// so a typo never surfaces as a confusing first-use failure.
	for _, name := range []string{"", "postgres", "local", "POSTGRESQL-VECTOR"} {
		t.Run("value "+name, func(t *testing.T) {
			_, err := New(backendConfig(name), log.NewNop())
			if !errors.Is(err, ErrUnknownBackend) {
				t.Fatalf("New(%q) = %v, want ErrUnknownBackend", name, err)
			}
			msg := err.Error()
			if !strings.Contains(msg, BackendPostgresVector) || !strings.Contains(msg, BackendEmbedded) {
				t.Errorf("error %q does not name the supported backends", msg)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, log.NewNop()); !errors.Is(err, ErrStorageInit) {
		t.Fatalf("New(nil) = %v, want ErrStorageInit", err)
	}
}
