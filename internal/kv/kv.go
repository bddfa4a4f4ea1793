// Package kv defines the durable key-value store the checkout core persists
// its pending state into, together with an in-memory implementation used by
// tests and local development.
package kv

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("kv: key not found")

// Store is a minimal durable key-value store. Implementations must make Set
// durable before returning: the checkout flow relies on "persisted before
// redirect" for crash recovery.
//
// There are no transactions. Callers order their writes so that a crash
// between two Sets leaves a state that readers can safely ignore.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the given keys. Removing a missing key is not an error.
	Remove(ctx context.Context, keys ...string) error
}
