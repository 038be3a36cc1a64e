// Package memory provides an in-memory implementation of storage.WindowStore.
//
// Keys are spread over a fixed number of shards, each guarded by its own mutex,
// so concurrent callers for different addresses rarely contend while calls for
// the same address are strictly serialised.
//
// Features:
//   - Per-key timestamp lists trimmed to the newest limit+1 entries
//   - Opportunistic eviction once the key count passes a threshold
//   - Forced eviction when the key count reaches twice the threshold
//   - Optional background janitor bound to a context
//   - Capacity statistics and an OpenTelemetry gauge for tracked keys
//
// Eviction only removes keys whose every timestamp has left the window, and the
// check is made under the shard lock, so a request that lands concurrently with a
// sweep is never lost.
//
// Example usage:
//
//	store := memory.New(memory.WithEvictionThreshold(1000))
//	store.StartJanitor(ctx, time.Minute, 15*time.Minute)
//
//	limiter := security.NewRateLimiter(store, 15*time.Minute, 20, logger)
package memory
