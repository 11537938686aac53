// Package store provides key/value persistence backends for conversation
// history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrAdapterClosed is returned by operations on a closed adapter.
var ErrAdapterClosed = errors.New("store: adapter closed")

// Adapter defines the interface for persistence backends.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Get retrieves a value by key. Returns nil, false, nil if not found.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores a value by key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes a key. No error if key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// Close releases resources held by the adapter.
	Close() error
}

// SerializationError wraps an encoding or decoding failure for a key.
type SerializationError struct {
	Key string
	Err error
}

// Error returns a formatted error message including the key.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("store: serialization error for key %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *SerializationError) Unwrap() error {
	return e.Err
}
