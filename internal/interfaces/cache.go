package interfaces

import "context"

// Cache holds derived read views keyed by the strings built in package cache.
// Values are stored by value: dst receives a decoded copy, never a shared reference.
type Cache interface {
	// Get decodes the value stored under key into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, keys ...string) error
}
