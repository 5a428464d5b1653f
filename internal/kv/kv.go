// Package kv defines the ordered key-value store the registry state layer is
// built on, together with typed accessors (Item, Map) and the key encoding
// that keeps every concern in its own region of the keyspace.
//
// A Transactor runs one call atomically: every write made through the Store
// handed to Update is committed together, or discarded when the callback
// returns an error. View gives a read-only handle over committed state.
//
// Implementations live in subpackages: memkv (in-process), sqlkv
// (PostgreSQL/SQLite) and rediskv (Redis).
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by typed loads when the key is absent.
	ErrNotFound = errors.New("kv: not found")

	// ErrStore wraps I/O-level failures of the backing store.
	ErrStore = errors.New("kv: store error")

	// ErrConflict is returned by optimistic backends when a key read during
	// the call was modified before commit.
	ErrConflict = errors.New("kv: concurrent modification")
)

// Reader is the read side of a store.
type Reader interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)

	// Scan calls fn for every key starting with prefix, in ascending byte
	// order. Returning an error from fn stops the scan and is returned as is.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
}

// Store is a Reader that also accepts writes.
type Store interface {
	Reader
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
}

// Transactor scopes store access to one atomic call.
type Transactor interface {
	Update(ctx context.Context, fn func(ctx context.Context, s Store) error) error
	View(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
	Close() error
}
