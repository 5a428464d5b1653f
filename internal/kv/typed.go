package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// KeyFunc encodes a typed map key into its suffix bytes.
type KeyFunc[K any] func(K) []byte

func decode[T any](key, raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: decode %q: %v", ErrStore, key, err)
	}
	return v, nil
}

func encode[T any](key []byte, v T) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %q: %v", ErrStore, key, err)
	}
	return raw, nil
}

// Item is a single JSON-encoded value stored under a fixed key.
type Item[T any] struct {
	key []byte
}

func NewItem[T any](namespace string) Item[T] {
	return Item[T]{key: Namespace(namespace)}
}

// Key returns the raw storage key.
func (i Item[T]) Key() []byte { return i.key }

// MayLoad returns the value and whether it was present.
func (i Item[T]) MayLoad(ctx context.Context, r Reader) (T, bool, error) {
	var zero T
	raw, ok, err := r.Get(ctx, i.key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := decode[T](i.key, raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Load returns the value or ErrNotFound.
func (i Item[T]) Load(ctx context.Context, r Reader) (T, error) {
	v, ok, err := i.MayLoad(ctx, r)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %q", ErrNotFound, i.key)
	}
	return v, nil
}

func (i Item[T]) Save(ctx context.Context, s Store, v T) error {
	raw, err := encode(i.key, v)
	if err != nil {
		return err
	}
	return s.Set(ctx, i.key, raw)
}

// Update loads the current value (ErrNotFound when absent), applies fn and
// saves the result.
func (i Item[T]) Update(ctx context.Context, s Store, fn func(T) (T, error)) (T, error) {
	cur, err := i.Load(ctx, s)
	if err != nil {
		return cur, err
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	return next, i.Save(ctx, s, next)
}

// Map is a region of JSON-encoded values addressed by typed keys.
type Map[K any, V any] struct {
	ns  []byte
	key KeyFunc[K]
}

func NewMap[K any, V any](namespace string, key KeyFunc[K]) Map[K, V] {
	return Map[K, V]{ns: Namespace(namespace), key: key}
}

// Key returns the raw storage key for k.
func (m Map[K, V]) Key(k K) []byte {
	return Join(m.ns, m.key(k))
}

func (m Map[K, V]) MayLoad(ctx context.Context, r Reader, k K) (V, bool, error) {
	var zero V
	key := m.Key(k)
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := decode[V](key, raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (m Map[K, V]) Load(ctx context.Context, r Reader, k K) (V, error) {
	v, ok, err := m.MayLoad(ctx, r, k)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %q", ErrNotFound, m.Key(k))
	}
	return v, nil
}

func (m Map[K, V]) Has(ctx context.Context, r Reader, k K) (bool, error) {
	_, ok, err := r.Get(ctx, m.Key(k))
	return ok, err
}

func (m Map[K, V]) Save(ctx context.Context, s Store, k K, v V) error {
	key := m.Key(k)
	raw, err := encode(key, v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw)
}

func (m Map[K, V]) Remove(ctx context.Context, s Store, k K) error {
	return s.Delete(ctx, m.Key(k))
}

// Update passes the current value (and whether it exists) to fn and saves
// whatever fn returns. An error from fn leaves the entry untouched.
func (m Map[K, V]) Update(ctx context.Context, s Store, k K, fn func(V, bool) (V, error)) (V, error) {
	cur, ok, err := m.MayLoad(ctx, s, k)
	if err != nil {
		return cur, err
	}
	next, err := fn(cur, ok)
	if err != nil {
		return next, err
	}
	return next, m.Save(ctx, s, k, next)
}

// Scan walks entries whose encoded key starts with sub, in ascending order.
// fn receives the key bytes that follow sub.
func (m Map[K, V]) Scan(ctx context.Context, r Reader, sub []byte, fn func(rest []byte, v V) error) error {
	prefix := Join(m.ns, sub)
	return r.Scan(ctx, prefix, func(key, raw []byte) error {
		if !bytes.HasPrefix(key, prefix) {
			return nil
		}
		v, err := decode[V](key, raw)
		if err != nil {
			return err
		}
		return fn(key[len(prefix):], v)
	})
}
