// Package testutil provides shared testing utilities, following the
// pattern of standard library packages like net/http/httptest.
package testutil

import (
	"context"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/boodongsan/boodongsan/internal/config"
)

// TestDBContainer wraps an isolated PostgreSQL instance with the pgvector
// extension available. Schema setup is left to the backend under test,
// which owns its own migrations.
type TestDBContainer struct {
	Container *postgres.PostgresContainer
	ConnStr   string
}

// SetupTestDB starts a pgvector-enabled PostgreSQL container.
//
// Returns the container and a cleanup function that must be called to
// terminate it:
//
//	db, cleanup := testutil.SetupTestDB(t)
//	defer cleanup()
//	cfg := testutil.StorageConfig(t, db.ConnStr)
func SetupTestDB(t *testing.T) (*TestDBContainer, func()) {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("boodongsan_test"),
		postgres.WithUsername("boodongsan_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	container := &TestDBContainer{
		Container: pgContainer,
		ConnStr:   connStr,
	}

	cleanup := func() {
		_ = pgContainer.Terminate(context.Background())
	}

	return container, cleanup
}

// StorageConfig builds a Config pointing at the test container, with the
// storage and cache fields tests usually want already filled in.
func StorageConfig(t *testing.T, connStr string) *config.Config {
	t.Helper()

	parsed, err := url.Parse(connStr)
	if err != nil {
		t.Fatalf("Failed to parse connection string %q: %v", connStr, err)
	}

	port := 5432
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			t.Fatalf("Failed to parse port in %q: %v", connStr, err)
		}
	}

	password, _ := parsed.User.Password()
	cfg := &config.Config{
		StorageBackend:     "postgresql-vector",
		PostgresHost:       parsed.Hostname(),
		PostgresPort:       port,
		PostgresUser:       parsed.User.Username(),
		PostgresPassword:   password,
		PostgresDBName:     parsed.Path[1:],
		PostgresSSLMode:    "disable",
		RedisURL:           "redis://localhost:6379/0",
		CacheTTL:           config.DefaultCacheTTL,
		EmbeddingDimension: config.DefaultEmbeddingDimension,
		RAGWorkingDir:      t.TempDir(),
		RAGWorkspace:       "test",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Test config invalid: %v", err)
	}
	return cfg
}
