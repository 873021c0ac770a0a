package storage

import "errors"

// Sentinel errors for storage operations.
// These errors are part of the Backend public API and should be checked
// using errors.Is().
//
// Example:
//
//	ok, err := backend.InsertEntity(ctx, entity)
//	if errors.Is(err, storage.ErrDimensionMismatch) {
//	    // embedding model and schema disagree on vector width
//	}
var (
	// ErrValidation indicates bad caller input: empty document text,
	// negative or non-finite relation weight, search limit below 1.
	// Never retried; surfaced to the caller immediately.
	ErrValidation = errors.New("invalid input")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the backend's configured dimension. It signals configuration or
	// version skew between the embedding model and the stored schema.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStorageInit indicates Initialize failed because required
	// configuration (connection settings, working directory) is absent.
	ErrStorageInit = errors.New("storage initialization failed")

	// ErrStorageClosed indicates an operation on a finalized backend.
	// A fresh Initialize resets the backend and clears this state.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrBackendUnavailable indicates the relational engine is unreachable.
	// Retry policy belongs to the caller, not this package.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrUnknownBackend indicates the backend selector was given an
	// unrecognized configuration value.
	ErrUnknownBackend = errors.New("unknown storage backend")
)
