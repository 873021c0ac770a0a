// Package storage defines the persistence contract shared by every RAG
// backend and the two concrete implementations behind it: PostgreSQL with
// pgvector (PostgresBackend) and the embedded engine's workspace directory
// (LocalBackend).
//
// Callers obtain a Backend through New and must not reach past the
// interface into backend-specific state. All mutating operations return a
// bool success for expected per-record failures (duplicate suppression,
// rejected relations) and reserve errors for validation, lifecycle misuse,
// and connectivity problems, so batch ingestion loops can count successes
// without per-item error handling.
package storage
