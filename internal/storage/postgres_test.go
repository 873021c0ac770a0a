package storage

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/boodongsan/boodongsan/internal/log"
)

// Validation runs before any connection is acquired, so these tests need
// no database.
func newUnitPostgresBackend() *PostgresBackend {
	return NewPostgresBackend(backendConfig(BackendPostgresVector), log.NewNop())
}

func validEmbedding() []float32 {
	return make([]float32, 1024)
}

func TestPostgresBackend_InsertDocumentValidation(t *testing.T) {
	backend := newUnitPostgresBackend()

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := backend.InsertDocument(context.Background(), text, nil); !errors.Is(err, ErrValidation) {
			t.Errorf("InsertDocument(%q) = %v, want ErrValidation", text, err)
		}
	}
}

func TestPostgresBackend_InsertEntityValidation(t *testing.T) {
	backend := newUnitPostgresBackend()
	ctx := context.Background()

	tests := []struct {
		name    string
		entity  Entity
		wantErr error
	}{
		{"empty ID", Entity{Type: "apartment"}, ErrValidation},
		{"empty type", Entity{ID: "apt-101"}, ErrValidation},
		{"short embedding", Entity{ID: "apt-101", Type: "apartment", Embedding: make([]float32, 512)}, ErrDimensionMismatch},
		{"zero-length embedding", Entity{ID: "apt-101", Type: "apartment", Embedding: []float32{}}, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := backend.InsertEntity(ctx, tt.entity); !errors.Is(err, tt.wantErr) {
				t.Errorf("InsertEntity() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresBackend_InsertRelationValidation(t *testing.T) {
	backend := newUnitPostgresBackend()
	ctx := context.Background()

	tests := []struct {
		name     string
		relation Relation
	}{
		{"empty source", Relation{TargetID: "b", Type: "near"}},
		{"empty target", Relation{SourceID: "a", Type: "near"}},
		{"empty type", Relation{SourceID: "a", TargetID: "b"}},
		{"negative weight", Relation{SourceID: "a", TargetID: "b", Type: "near", Weight: -1}},
		{"NaN weight", Relation{SourceID: "a", TargetID: "b", Type: "near", Weight: math.NaN()}},
		{"infinite weight", Relation{SourceID: "a", TargetID: "b", Type: "near", Weight: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := backend.InsertRelation(ctx, tt.relation); !errors.Is(err, ErrValidation) {
				t.Errorf("InsertRelation() = %v, want ErrValidation", err)
			}
		})
	}
}

func TestPostgresBackend_SearchValidation(t *testing.T) {
	backend := newUnitPostgresBackend()
	ctx := context.Background()

	if _, err := backend.SearchSimilarVectors(ctx, validEmbedding(), 0); !errors.Is(err, ErrValidation) {
		t.Errorf("SearchSimilarVectors(limit=0) = %v, want ErrValidation", err)
	}
	if _, err := backend.SearchSimilarVectors(ctx, validEmbedding(), -3); !errors.Is(err, ErrValidation) {
		t.Errorf("SearchSimilarVectors(limit=-3) = %v, want ErrValidation", err)
	}
	if _, err := backend.SearchSimilarVectors(ctx, make([]float32, 10), 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("SearchSimilarVectors(short vector) = %v, want ErrDimensionMismatch", err)
	}
	if _, err := backend.SearchSimilarVectors(ctx, nil, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("SearchSimilarVectors(nil vector) = %v, want ErrDimensionMismatch", err)
	}
}

func TestPostgresBackend_ClosedRejectsUse(t *testing.T) {
	backend := newUnitPostgresBackend()
	ctx := context.Background()

	// Finalize without Initialize marks the backend closed; no pool exists.
	if err := backend.Finalize(ctx); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}
	if err := backend.Finalize(ctx); err != nil {
		t.Fatalf("second Finalize() error: %v", err)
	}

	if _, err := backend.InsertDocument(ctx, "text", nil); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("InsertDocument() after Finalize = %v, want ErrStorageClosed", err)
	}
	if _, err := backend.InsertEntity(ctx, Entity{ID: "a", Type: "t"}); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("InsertEntity() after Finalize = %v, want ErrStorageClosed", err)
	}
	if _, err := backend.InsertRelation(ctx, Relation{SourceID: "a", TargetID: "b", Type: "near"}); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("InsertRelation() after Finalize = %v, want ErrStorageClosed", err)
	}
	if _, err := backend.SearchSimilarVectors(ctx, validEmbedding(), 5); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("SearchSimilarVectors() after Finalize = %v, want ErrStorageClosed", err)
	}
	if _, err := backend.GetEntity(ctx, "a"); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("GetEntity() after Finalize = %v, want ErrStorageClosed", err)
	}
	if _, err := backend.GetEntityRelations(ctx, "a", ""); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("GetEntityRelations() after Finalize = %v, want ErrStorageClosed", err)
	}
	if _, err := backend.IsEmpty(ctx); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("IsEmpty() after Finalize = %v, want ErrStorageClosed", err)
	}
}

func TestPostgresBackend_InitializeNilConfig(t *testing.T) {
	backend := NewPostgresBackend(nil, log.NewNop())
	if err := backend.Initialize(context.Background()); !errors.Is(err, ErrStorageInit) {
		t.Fatalf("Initialize() = %v, want ErrStorageInit", err)
	}
}

func TestMarshalProperties(t *testing.T) {
	data, err := marshalProperties(nil)
	if err != nil {
		t.Fatalf("marshalProperties(nil) error: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("marshalProperties(nil) = %s, want {}", data)
	}

	data, err = marshalProperties(map[string]any{"구": "강남구"})
	if err != nil {
		t.Fatalf("marshalProperties() error: %v", err)
	}
	if string(data) != `{"구":"강남구"}` {
		t.Errorf("marshalProperties() = %s", data)
	}
}

func TestUnmarshalProperties(t *testing.T) {
	backend := newUnitPostgresBackend()

	props := backend.unmarshalProperties(nil, "apt-101")
	if props == nil || len(props) != 0 {
		t.Errorf("unmarshalProperties(nil) = %v, want empty map", props)
	}

	// Malformed content degrades to an empty map, it never fails the row.
	props = backend.unmarshalProperties([]byte("not-json"), "apt-101")
	if props == nil || len(props) != 0 {
		t.Errorf("unmarshalProperties(malformed) = %v, want empty map", props)
	}

	props = backend.unmarshalProperties([]byte(`{"floor":12}`), "apt-101")
	if got, ok := props["floor"].(float64); !ok || got != 12 {
		t.Errorf("unmarshalProperties() = %v, want floor=12", props)
	}
}
