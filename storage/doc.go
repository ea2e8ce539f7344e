// Package storage provides the persistence interfaces for the credential and
// token engine.
//
// The interfaces in this package are implemented by:
//   - storage/memory: In-memory storage for development and testing
//   - storage/valkey: Valkey/Redis-backed storage for production
//
// All implementations must provide per-key atomicity; no cross-key
// transactions are assumed by the engine.
package storage
