// Package kvstore provides the string-keyed persistent store that cart
// state and purchase snapshots are written through to.
package kvstore

import (
	"context"
	"errors"
)

// Store is a durable string-keyed byte store. Writes are full overwrites,
// last writer wins; there is no versioning or conflict detection.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")
