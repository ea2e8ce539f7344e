// Package valkey implements the storage interfaces on a Valkey (or Redis
// compatible) server using github.com/valkey-io/valkey-go.
//
// Keys are namespaced under a configurable prefix:
//
//	<prefix>credential:<principal-id>:<type>
//	<prefix>token:<token-id>
//	<prefix>scopes
//
// Token TTLs map to native key expiry (SET ... EX). Inserts that must not
// overwrite existing records use SET ... NX for per-key atomicity; no
// cross-key transactions are used.
package valkey
