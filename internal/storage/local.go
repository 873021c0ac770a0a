package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// dataSuffixes are the file extensions the embedded engine persists state
// under: structured-data files, pickled graph snapshots, and embedded
// vector databases. The probe in IsEmpty only inspects suffixes; this
// backend defines no file format of its own.
var dataSuffixes = map[string]struct{}{
	".json": {},
	".pkl":  {},
	".db":   {},
}

// LocalBackend implements Backend over a workspace directory that the
// external embedded graph/vector engine manages directly.
//
// Every write operation is DELEGATED: the embedded engine intercepts the
// actual mutation through its own ingestion path, so the contract methods
// here report success without touching the directory. They exist so
// callers keep a uniform interface regardless of the selected backend.
// Read operations likewise return empty results because this backend does
// not duplicate the engine's read path. Each delegated call logs at debug
// level with delegated=true so the no-op is visible, not silent.
type LocalBackend struct {
	workingDir string
	logger     *slog.Logger

	mu          sync.Mutex
	initialized bool
	closed      bool
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a LocalBackend for the given workspace directory.
// No I/O happens until Initialize.
func NewLocalBackend(workingDir string, logger *slog.Logger) *LocalBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBackend{
		workingDir: workingDir,
		logger:     logger,
	}
}

// Initialize ensures the workspace directory exists. Idempotent.
func (b *LocalBackend) Initialize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		b.logger.Info("local backend already initialized", "working_dir", b.workingDir)
		return nil
	}

	if strings.TrimSpace(b.workingDir) == "" {
		return fmt.Errorf("%w: working directory is not configured", ErrStorageInit)
	}
	if err := os.MkdirAll(b.workingDir, 0o750); err != nil {
		return fmt.Errorf("%w: creating working directory %s: %v", ErrStorageInit, b.workingDir, err)
	}

	b.initialized = true
	b.closed = false
	b.logger.Info("local backend initialized", "working_dir", b.workingDir)
	return nil
}

// Finalize marks the backend closed. The workspace directory and the
// engine's files in it are left untouched. Safe to call multiple times.
func (b *LocalBackend) Finalize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.initialized = false
	b.closed = true
	b.logger.Info("local backend finalized", "working_dir", b.workingDir)
	return nil
}

// ensureReady lazily initializes on first use and rejects use after
// Finalize until a fresh Initialize.
func (b *LocalBackend) ensureReady() error {
	b.mu.Lock()
	closed, initialized := b.closed, b.initialized
	b.mu.Unlock()

	if closed {
		return ErrStorageClosed
	}
	if !initialized {
		return b.Initialize(context.Background())
	}
	return nil
}

// InsertDocument reports success; the write is delegated to the embedded
// engine's own ingestion path.
func (b *LocalBackend) InsertDocument(_ context.Context, text string, _ map[string]any) (bool, error) {
	if err := b.ensureReady(); err != nil {
		return false, err
	}
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("%w: document text must not be empty", ErrValidation)
	}
	b.logger.Debug("document write delegated to embedded engine", "delegated", true)
	return true, nil
}

// InsertEntity reports success; the write is delegated to the embedded
// engine's own ingestion path.
func (b *LocalBackend) InsertEntity(_ context.Context, entity Entity) (bool, error) {
	if err := b.ensureReady(); err != nil {
		return false, err
	}
	b.logger.Debug("entity write delegated to embedded engine",
		"delegated", true, "entity_id", entity.ID)
	return true, nil
}

// InsertRelation reports success; the write is delegated to the embedded
// engine's own ingestion path. Endpoint existence is not checked here:
// the engine owns referential behavior for its own store.
func (b *LocalBackend) InsertRelation(_ context.Context, relation Relation) (bool, error) {
	if err := b.ensureReady(); err != nil {
		return false, err
	}
	b.logger.Debug("relation write delegated to embedded engine",
		"delegated", true, "source", relation.SourceID, "target", relation.TargetID)
	return true, nil
}

// SearchSimilarVectors returns an empty result set; the read path is
// delegated to the embedded engine's own vector store.
func (b *LocalBackend) SearchSimilarVectors(_ context.Context, _ []float32, limit int) ([]SearchResult, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", ErrValidation, limit)
	}
	b.logger.Debug("vector search delegated to embedded engine", "delegated", true)
	return []SearchResult{}, nil
}

// GetEntity returns absent; the read path is delegated to the embedded
// engine's own graph store.
func (b *LocalBackend) GetEntity(_ context.Context, entityID string) (*Entity, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	b.logger.Debug("entity lookup delegated to embedded engine",
		"delegated", true, "entity_id", entityID)
	return nil, nil
}

// GetEntityRelations returns an empty slice; the read path is delegated to
// the embedded engine's own graph store.
func (b *LocalBackend) GetEntityRelations(_ context.Context, entityID, _ string) ([]Relation, error) {
	if err := b.ensureReady(); err != nil {
		return nil, err
	}
	b.logger.Debug("relation lookup delegated to embedded engine",
		"delegated", true, "entity_id", entityID)
	return []Relation{}, nil
}

// IsEmpty inspects the workspace directory for any file whose suffix
// denotes persisted engine state. A missing directory also counts as
// empty.
func (b *LocalBackend) IsEmpty(_ context.Context) (bool, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return false, ErrStorageClosed
	}

	if _, err := os.Stat(b.workingDir); os.IsNotExist(err) {
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("probing working directory: %w", err)
	}

	empty := true
	err := filepath.WalkDir(b.workingDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := dataSuffixes[strings.ToLower(filepath.Ext(d.Name()))]; ok {
			empty = false
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("scanning working directory: %w", err)
	}
	return empty, nil
}
