// Package storage persists small string values under fixed keys, the way a
// device keeps the signed-in user's role and token across restarts.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("key not found")

// KeyValue is a durable string store.
type KeyValue interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// KeyBuilder joins a namespace and key parts with ":".
type KeyBuilder struct {
	namespace string
	separator string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{
		namespace: namespace,
		separator: ":",
	}
}

// Build builds a key from parts
func (b *KeyBuilder) Build(parts ...string) string {
	if b.namespace != "" {
		parts = append([]string{b.namespace}, parts...)
	}

	key := ""
	for i, part := range parts {
		if i > 0 {
			key += b.separator
		}
		key += part
	}

	return key
}
