// Package cache provides the resilient cache layer: a Manager owning the
// single Redis connection with transparent degradation to an in-process
// substitute, and a Cache façade adding typed operations, JSON helpers,
// and a process-wide default TTL.
//
// Callers never learn which mode they are in. When Redis is unreachable on
// first use, the Manager logs one warning and serves every subsequent
// operation from the substitute with identical semantics; Close resets the
// state so the next use re-attempts a live connection.
package cache
