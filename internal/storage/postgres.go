package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/boodongsan/boodongsan/db"
	"github.com/boodongsan/boodongsan/internal/config"
)

// PostgresBackend implements Backend over PostgreSQL with the pgvector
// extension. Entity and relation inserts are upserts keyed by identifier,
// embeddings live in a fixed-width vector column, and similarity search is
// a cosine nearest-neighbor query.
//
// The schema (db/migrations) owns the embedding dimension: Initialize
// verifies that the configured dimension matches the migrated column and
// fails with ErrDimensionMismatch on skew. Concurrent use is safe; query
// serialization is delegated to the pgx connection pool.
type PostgresBackend struct {
	cfg    *config.Config
	logger *slog.Logger

	mu          sync.Mutex
	pool        *pgxpool.Pool
	initialized bool
	closed      bool
}

var _ Backend = (*PostgresBackend)(nil)

// NewPostgresBackend creates a PostgresBackend. No connection is opened
// until Initialize.
func NewPostgresBackend(cfg *config.Config, logger *slog.Logger) *PostgresBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBackend{
		cfg:    cfg,
		logger: logger,
	}
}

// Initialize runs migrations, opens the connection pool, and verifies the
// schema's vector dimension against the configuration. Idempotent: calling
// it on an initialized backend is a logged no-op.
func (b *PostgresBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initializeLocked(ctx)
}

func (b *PostgresBackend) initializeLocked(ctx context.Context) error {
	if b.initialized {
		b.logger.Info("postgres backend already initialized")
		return nil
	}

	if b.cfg == nil {
		return fmt.Errorf("%w: nil configuration", ErrStorageInit)
	}
	if strings.TrimSpace(b.cfg.PostgresHost) == "" || strings.TrimSpace(b.cfg.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres connection settings are not configured", ErrStorageInit)
	}

	if err := db.Migrate(b.cfg.PostgresURL()); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	poolCfg, err := pgxpool.ParseConfig(b.cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("%w: parsing connection string: %v", ErrStorageInit, err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("%w: creating connection pool: %v", ErrBackendUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := b.verifySchemaDimension(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	b.pool = pool
	b.initialized = true
	b.closed = false
	b.logger.Info("postgres backend initialized",
		"host", b.cfg.PostgresHost, "database", b.cfg.PostgresDBName,
		"dimension", b.cfg.EmbeddingDimension)
	return nil
}

// verifySchemaDimension compares the migrated vector column width against
// the configured embedding dimension. A mismatch means the embedding model
// and the stored schema have diverged; recovering requires dropping and
// regenerating every stored vector, so fail loudly instead of corrupting
// the index.
func (b *PostgresBackend) verifySchemaDimension(ctx context.Context, pool *pgxpool.Pool) error {
	var schemaDim int
	err := pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = 'public.entities'::regclass AND attname = 'embedding'`,
	).Scan(&schemaDim)
	if err != nil {
		return fmt.Errorf("%w: reading schema vector dimension: %v", ErrStorageInit, err)
	}
	if schemaDim != b.cfg.EmbeddingDimension {
		return fmt.Errorf("%w: schema has vector(%d) but configuration expects %d; "+
			"changing the dimension requires dropping and re-embedding all stored vectors",
			ErrDimensionMismatch, schemaDim, b.cfg.EmbeddingDimension)
	}
	return nil
}

// Finalize closes the connection pool. Safe to call multiple times;
// subsequent operations fail with ErrStorageClosed until a fresh
// Initialize.
func (b *PostgresBackend) Finalize(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	b.initialized = false
	b.closed = true
	b.logger.Info("postgres backend finalized")
	return nil
}

// acquire returns the pool, lazily initializing on first use.
func (b *PostgresBackend) acquire(ctx context.Context) (*pgxpool.Pool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrStorageClosed
	}
	if !b.initialized {
		if err := b.initializeLocked(ctx); err != nil {
			return nil, err
		}
	}
	return b.pool, nil
}

// InsertDocument stores a document with a backend-assigned UUID identity.
// Duplicate suppression is a soft failure: (false, nil).
func (b *PostgresBackend) InsertDocument(ctx context.Context, text string, metadata map[string]any) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("%w: document text must not be empty", ErrValidation)
	}

	pool, err := b.acquire(ctx)
	if err != nil {
		return false, err
	}

	metadataJSON, err := marshalProperties(metadata)
	if err != nil {
		return false, fmt.Errorf("%w: metadata not serializable: %v", ErrValidation, err)
	}

	id := uuid.New()
	_, err = pool.Exec(ctx,
		`INSERT INTO documents (id, content, doc_metadata) VALUES ($1, $2, $3)`,
		id, text, metadataJSON,
	)
	if err != nil {
		if isPgErr(err, pgerrcode.UniqueViolation) {
			b.logger.Warn("duplicate document suppressed", "id", id)
			return false, nil
		}
		return false, fmt.Errorf("inserting document: %w", err)
	}

	b.logger.Debug("inserted document", "id", id, "content_length", len(text))
	return true, nil
}

// InsertEntity upserts an entity keyed by Entity.ID. An existing entity is
// overwritten, never duplicated; an absent embedding in the update keeps
// the stored vector.
func (b *PostgresBackend) InsertEntity(ctx context.Context, entity Entity) (bool, error) {
	if strings.TrimSpace(entity.ID) == "" {
		return false, fmt.Errorf("%w: entity ID must not be empty", ErrValidation)
	}
	if strings.TrimSpace(entity.Type) == "" {
		return false, fmt.Errorf("%w: entity type must not be empty", ErrValidation)
	}
	if err := b.checkDimension(len(entity.Embedding), entity.Embedding != nil); err != nil {
		return false, err
	}

	pool, err := b.acquire(ctx)
	if err != nil {
		return false, err
	}

	propertiesJSON, err := marshalProperties(entity.Properties)
	if err != nil {
		return false, fmt.Errorf("%w: properties not serializable: %v", ErrValidation, err)
	}

	var embedding *pgvector.Vector
	if entity.Embedding != nil {
		v := pgvector.NewVector(entity.Embedding)
		embedding = &v
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO entities (entity_id, entity_type, description, properties, embedding)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		 ON CONFLICT (entity_id) DO UPDATE SET
		     entity_type = EXCLUDED.entity_type,
		     description = EXCLUDED.description,
		     properties  = EXCLUDED.properties,
		     embedding   = COALESCE(EXCLUDED.embedding, entities.embedding),
		     updated_at  = CURRENT_TIMESTAMP`,
		entity.ID, entity.Type, entity.Description, propertiesJSON, embedding,
	)
	if err != nil {
		return false, fmt.Errorf("upserting entity %q: %w", entity.ID, err)
	}

	b.logger.Debug("upserted entity", "entity_id", entity.ID, "entity_type", entity.Type)
	return true, nil
}

// InsertRelation stores a directed relation. Referential policy is
// reject-if-missing: a foreign-key violation (either endpoint absent) is
// an expected per-record soft failure reported as (false, nil) with a
// warning, so batch loops continue and nothing is silently dropped.
func (b *PostgresBackend) InsertRelation(ctx context.Context, relation Relation) (bool, error) {
	if strings.TrimSpace(relation.SourceID) == "" || strings.TrimSpace(relation.TargetID) == "" {
		return false, fmt.Errorf("%w: relation endpoints must not be empty", ErrValidation)
	}
	if strings.TrimSpace(relation.Type) == "" {
		return false, fmt.Errorf("%w: relation type must not be empty", ErrValidation)
	}
	weight := relation.Weight
	if weight == 0 {
		weight = DefaultRelationWeight
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return false, fmt.Errorf("%w: relation weight must be finite and non-negative, got %v",
			ErrValidation, relation.Weight)
	}

	pool, err := b.acquire(ctx)
	if err != nil {
		return false, err
	}

	propertiesJSON, err := marshalProperties(relation.Properties)
	if err != nil {
		return false, fmt.Errorf("%w: properties not serializable: %v", ErrValidation, err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO graph_relations (source_entity, target_entity, relation_type, description, weight, properties)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		relation.SourceID, relation.TargetID, relation.Type, relation.Description, weight, propertiesJSON,
	)
	if err != nil {
		if isPgErr(err, pgerrcode.ForeignKeyViolation) {
			b.logger.Warn("relation rejected: endpoint entity does not exist",
				"source", relation.SourceID, "target", relation.TargetID,
				"relation_type", relation.Type)
			return false, nil
		}
		return false, fmt.Errorf("inserting relation %s-[%s]->%s: %w",
			relation.SourceID, relation.Type, relation.TargetID, err)
	}

	b.logger.Debug("inserted relation",
		"source", relation.SourceID, "target", relation.TargetID,
		"relation_type", relation.Type, "weight", weight)
	return true, nil
}

// SearchSimilarVectors runs a cosine nearest-neighbor query over entity
// embeddings. Results are ordered by ascending cosine distance, reported
// as Score = 1 - distance.
func (b *PostgresBackend) SearchSimilarVectors(ctx context.Context, queryEmbedding []float32, limit int) ([]SearchResult, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be >= 1, got %d", ErrValidation, limit)
	}
	if err := b.checkDimension(len(queryEmbedding), true); err != nil {
		return nil, err
	}

	pool, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := pgvector.NewVector(queryEmbedding)
	rows, err := pool.Query(ctx,
		`SELECT entity_id, entity_type, description, properties, embedding <=> $1 AS distance
		 FROM entities
		 WHERE embedding IS NOT NULL
		 ORDER BY distance
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, limit)
	for rows.Next() {
		var (
			entityID   string
			entityType string
			desc       *string
			propsJSON  []byte
			distance   float64
		)
		if err := rows.Scan(&entityID, &entityType, &desc, &propsJSON, &distance); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		metadata := map[string]any{
			"entity_type": entityType,
			"properties":  b.unmarshalProperties(propsJSON, entityID),
			"distance":    distance,
		}
		if desc != nil {
			metadata["description"] = *desc
		}

		results = append(results, SearchResult{
			ID:       entityID,
			Score:    1.0 - distance,
			Metadata: metadata,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	b.logger.Debug("vector search completed", "results", len(results), "limit", limit)
	return results, nil
}

// GetEntity returns the entity with the given ID, or (nil, nil) when it
// does not exist.
func (b *PostgresBackend) GetEntity(ctx context.Context, entityID string) (*Entity, error) {
	pool, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}

	var (
		entity    Entity
		desc      *string
		propsJSON []byte
		embedding *pgvector.Vector
	)
	err = pool.QueryRow(ctx,
		`SELECT entity_id, entity_type, description, properties, embedding
		 FROM entities WHERE entity_id = $1`,
		entityID,
	).Scan(&entity.ID, &entity.Type, &desc, &propsJSON, &embedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %q: %w", entityID, err)
	}

	if desc != nil {
		entity.Description = *desc
	}
	entity.Properties = b.unmarshalProperties(propsJSON, entityID)
	if embedding != nil {
		entity.Embedding = embedding.Slice()
	}
	return &entity, nil
}

// GetEntityRelations returns every relation where the entity appears as
// source or target, optionally filtered by relation type.
func (b *PostgresBackend) GetEntityRelations(ctx context.Context, entityID, relationType string) ([]Relation, error) {
	pool, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT source_entity, target_entity, relation_type, description, weight, properties
	          FROM graph_relations
	          WHERE (source_entity = $1 OR target_entity = $1)`
	args := []any{entityID}
	if relationType != "" {
		query += ` AND relation_type = $2`
		args = append(args, relationType)
	}
	query += ` ORDER BY created_at`

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting relations for entity %q: %w", entityID, err)
	}
	defer rows.Close()

	relations := []Relation{}
	for rows.Next() {
		var (
			rel       Relation
			desc      *string
			propsJSON []byte
		)
		if err := rows.Scan(&rel.SourceID, &rel.TargetID, &rel.Type, &desc, &rel.Weight, &propsJSON); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		if desc != nil {
			rel.Description = *desc
		}
		rel.Properties = b.unmarshalProperties(propsJSON, entityID)
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting relations for entity %q: %w", entityID, err)
	}

	return relations, nil
}

// IsEmpty is a structural probe: tables that have not been migrated yet
// count as empty, otherwise one EXISTS per table. No full row counts.
func (b *PostgresBackend) IsEmpty(ctx context.Context) (bool, error) {
	pool, err := b.acquire(ctx)
	if err != nil {
		return false, err
	}

	var tablesPresent bool
	err = pool.QueryRow(ctx,
		`SELECT to_regclass('public.documents') IS NOT NULL
		    AND to_regclass('public.entities') IS NOT NULL
		    AND to_regclass('public.graph_relations') IS NOT NULL`,
	).Scan(&tablesPresent)
	if err != nil {
		return false, fmt.Errorf("probing tables: %w", err)
	}
	if !tablesPresent {
		return true, nil
	}

	var hasData bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents)
		     OR EXISTS (SELECT 1 FROM entities)
		     OR EXISTS (SELECT 1 FROM graph_relations)`,
	).Scan(&hasData)
	if err != nil {
		return false, fmt.Errorf("probing data presence: %w", err)
	}
	return !hasData, nil
}

// checkDimension validates an embedding length against the configured
// dimension. present distinguishes "no embedding supplied" (allowed) from
// a zero-length vector (rejected).
func (b *PostgresBackend) checkDimension(length int, present bool) error {
	if !present {
		return nil
	}
	if length != b.cfg.EmbeddingDimension {
		return fmt.Errorf("%w: got %d, backend configured for %d",
			ErrDimensionMismatch, length, b.cfg.EmbeddingDimension)
	}
	return nil
}

// unmarshalProperties decodes a JSONB column, degrading to an empty map on
// malformed content so one bad row cannot poison a whole result set.
func (b *PostgresBackend) unmarshalProperties(data []byte, entityID string) map[string]any {
	if len(data) == 0 {
		return map[string]any{}
	}
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		b.logger.Warn("failed to parse stored properties", "entity_id", entityID, "error", err)
		return map[string]any{}
	}
	return props
}

func marshalProperties(props map[string]any) ([]byte, error) {
	if props == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(props)
}

// isPgErr reports whether err is a PostgreSQL error with the given code.
func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
