package ports

import (
	"context"
	"time"
)

// ErrNotFound is returned by KeyValue.Get when a key is absent or expired.
type notFoundError struct{}

func (notFoundError) Error() string { return "key not found" }

var ErrNotFound error = notFoundError{}

// KeyValue is durable, TTL-bearing key-value storage for credential
// material. Implementations are best-effort: a runtime without storage
// reports Available() == false and turns writes into no-ops rather than
// failing callers.
type KeyValue interface {
	// Set writes value under key with the given retention. A negative or
	// zero ttl deletes the key immediately.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the stored value, or ErrNotFound when absent/expired.
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// Available reports whether this runtime has working storage.
	Available() bool
}
