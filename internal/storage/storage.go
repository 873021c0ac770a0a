package storage

import "context"

// DefaultRelationWeight is applied when a relation is inserted with a zero
// weight, matching the ingestion pipeline's convention that an unweighted
// edge counts as 1.0.
const DefaultRelationWeight = 1.0

// Entity is a knowledge-graph node. ID is caller-assigned and unique per
// backend; re-inserting an existing ID overwrites (upsert), never
// duplicates. Embedding, when present, must have exactly the backend's
// configured dimension.
type Entity struct {
	ID          string
	Type        string
	Description string
	Properties  map[string]any
	Embedding   []float32
}

// Relation is a directed, typed edge between two entities. Weight must be
// finite and non-negative; a zero weight is treated as unset and replaced
// with DefaultRelationWeight.
type Relation struct {
	SourceID    string
	TargetID    string
	Type        string
	Description string
	Weight      float64
	Properties  map[string]any
}

// SearchResult is one vector-similarity hit. Score decreases monotonically
// within a result set; the relational backend computes 1 - cosine distance.
type SearchResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Backend is the capability set every persistence backend implements.
// Instances are created once per process (or per logical workspace) and
// live until Finalize. Implementations are safe for concurrent use;
// thread safety for the underlying resources is delegated to the engine's
// client. There is no cross-operation transaction: each call is
// independently atomic, and callers needing a consistent entity+relation
// write must treat partial failure as recoverable.
type Backend interface {
	// Initialize establishes backend resources (directories, connections,
	// extensions, schema). Idempotent: calling it on an initialized backend
	// is a logged no-op, not an error. Fails with ErrStorageInit when
	// required configuration is absent.
	Initialize(ctx context.Context) error

	// Finalize releases backend resources. Safe to call multiple times.
	// Subsequent operations fail with ErrStorageClosed until a fresh
	// Initialize.
	Finalize(ctx context.Context) error

	// InsertDocument stores an opaque text payload with optional metadata.
	// Identity is assigned by the backend. Text must be non-empty
	// (ErrValidation). Returns (false, nil) on soft failures such as
	// duplicate suppression.
	InsertDocument(ctx context.Context, text string, metadata map[string]any) (bool, error)

	// InsertEntity upserts an entity keyed by Entity.ID. An embedding of
	// the wrong length fails with ErrDimensionMismatch.
	InsertEntity(ctx context.Context, entity Entity) (bool, error)

	// InsertRelation stores a directed relation. A negative or non-finite
	// weight fails with ErrValidation. The relational backend rejects
	// relations whose endpoints are absent and reports (false, nil).
	InsertRelation(ctx context.Context, relation Relation) (bool, error)

	// SearchSimilarVectors returns at most limit results ordered by
	// decreasing similarity. The query embedding must match the configured
	// dimension (ErrDimensionMismatch); limit must be >= 1 (ErrValidation).
	// An empty store yields an empty slice, not an error.
	SearchSimilarVectors(ctx context.Context, queryEmbedding []float32, limit int) ([]SearchResult, error)

	// GetEntity returns the entity with the given ID, or (nil, nil) when it
	// does not exist. Absence is a normal outcome, not an error.
	GetEntity(ctx context.Context, entityID string) (*Entity, error)

	// GetEntityRelations returns every relation touching the entity as
	// source or target, optionally filtered by relation type (empty string
	// means unfiltered). No matches yields an empty slice.
	GetEntityRelations(ctx context.Context, entityID, relationType string) ([]Relation, error)

	// IsEmpty reports whether the backend holds any data. It is a cheap
	// structural probe (table presence, data-file suffixes), used by
	// callers to decide whether to skip expensive re-seeding.
	IsEmpty(ctx context.Context) (bool, error)
}
