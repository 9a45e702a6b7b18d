package ports

import "context"

// SessionCacheStore is the durable key/value storage behind the session cache.
// Get returns an error wrapping core.ErrNotFound when the key is absent.
type SessionCacheStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
