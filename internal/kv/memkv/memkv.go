// Package memkv is an in-process kv.Transactor. Writes made inside Update are
// staged and applied only when the callback succeeds; Update calls are
// serialized and View calls see only committed state.
package memkv

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/userledger/internal/kv"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ kv.Transactor = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, st kv.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &txn{base: s.data, pending: make(map[string][]byte), deleted: make(map[string]struct{})}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k := range t.deleted {
		delete(s.data, k)
	}
	for k, v := range t.pending {
		s.data[k] = v
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r kv.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &txn{base: s.data})
}

func (s *Store) Close() error { return nil }

// Len reports the number of committed keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// txn overlays staged writes on the committed map. A key is either in
// pending, in deleted, or untouched.
type txn struct {
	base    map[string][]byte
	pending map[string][]byte
	deleted map[string]struct{}
}

func (t *txn) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	k := string(key)
	if v, ok := t.pending[k]; ok {
		return bytes.Clone(v), true, nil
	}
	if _, ok := t.deleted[k]; ok {
		return nil, false, nil
	}
	v, ok := t.base[k]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (t *txn) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	var keys []string
	for k := range t.base {
		if len(k) >= len(p) && k[:len(p)] == p {
			if _, gone := t.deleted[k]; gone {
				continue
			}
			if _, staged := t.pending[k]; staged {
				continue
			}
			keys = append(keys, k)
		}
	}
	for k := range t.pending {
		if len(k) >= len(p) && k[:len(p)] == p {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, _, _ := t.Get(ctx, []byte(k))
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) Set(_ context.Context, key, value []byte) error {
	k := string(key)
	delete(t.deleted, k)
	t.pending[k] = bytes.Clone(value)
	return nil
}

func (t *txn) Delete(_ context.Context, key []byte) error {
	k := string(key)
	delete(t.pending, k)
	t.deleted[k] = struct{}{}
	return nil
}
