package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// KV is the injected durable-cache surface. The gateway persists the cart
// snapshot, the remote cart id, and cached credentials through it; tests
// substitute the in-memory implementation.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
