// Package cache provides the TTL cache behind exchange metadata lookups
// (tick sizes, market details) so hot-path quoting never waits on REST.
package cache

import "time"

// Cache is a TTL key-value store.
type Cache interface {
	// Get retrieves a value; ok is false on a miss.
	Get(key string) (interface{}, bool)

	// Set stores a value with a TTL; the write may be applied
	// asynchronously.
	Set(key string, value interface{}, ttl time.Duration) bool

	// Delete removes a value.
	Delete(key string)

	// Close releases resources.
	Close()
}
