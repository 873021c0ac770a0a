package storage

import (
	"fmt"
	"log/slog"

	"github.com/boodongsan/boodongsan/internal/config"
)

// Recognized values for the storage_backend configuration key.
const (
	// BackendPostgresVector selects the PostgreSQL + pgvector backend.
	BackendPostgresVector = "postgresql-vector"

	// BackendEmbedded selects the embedded engine's workspace directory,
	// parameterized by rag_working_dir and rag_workspace.
	BackendEmbedded = "embedded"
)

// New resolves the configured backend name to a concrete Backend instance.
// It performs no I/O: an unrecognized value fails here, at startup, with
// ErrUnknownBackend naming the offending value and the supported set,
// never at first use.
func New(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil configuration", ErrStorageInit)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.StorageBackend {
	case BackendPostgresVector:
		logger.Info("creating PostgreSQL vector storage backend",
			"host", cfg.PostgresHost, "database", cfg.PostgresDBName,
			"dimension", cfg.EmbeddingDimension)
		return NewPostgresBackend(cfg, logger.With("backend", BackendPostgresVector)), nil

	case BackendEmbedded:
		dir := cfg.WorkspaceDir()
		logger.Info("creating embedded storage backend",
			"working_dir", dir, "workspace", cfg.RAGWorkspace)
		return NewLocalBackend(dir, logger.With("backend", BackendEmbedded)), nil

	default:
		return nil, fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrUnknownBackend, cfg.StorageBackend, BackendPostgresVector, BackendEmbedded)
	}
}
