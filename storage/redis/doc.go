// Package redis provides a Redis-backed implementation of storage.WindowStore.
//
// Every key is a sorted set whose scores are request instants in microseconds.
// A single Lua script prunes, appends, trims, counts and refreshes the expiry of
// a key, so concurrent gate replicas sharing one Redis observe a serialised
// window per client address.
//
// Example usage:
//
//	client := goredis.NewUniversalClient(&goredis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	store := redis.New(client, redis.WithPrefix("invitegate:window:"))
package redis
