// Package storage defines the shared rate-limit table used by the invite gate.
//
// The only state the gate keeps is a rolling window of request instants per client
// network address. It is modelled as an explicitly injected WindowStore with an
// atomic record-and-count operation, so the limiter never relies on package-level
// state and the same limiter can run against a single process or a shared backend.
//
// Implementations are provided in subpackages:
//   - storage/memory: striped-lock in-process store with opportunistic eviction
//   - storage/redis: Redis sorted-set store driven by a single Lua script per call
//
// Nothing in this package is persisted across restarts; the Redis store expires
// every key after one window.
package storage
