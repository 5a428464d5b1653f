// Package rediskv implements kv.Transactor on Redis.
//
// Values live under "<prefix>:d:<key>" and every key is also a member of the
// sorted set "<prefix>:idx" (all scores 0), so ordered prefix iteration is a
// ZRANGEBYLEX over the index.
//
// An Update call buffers its writes and commits them in one MULTI/EXEC.
// Every key read during the call, and the index when a scan is made, is
// WATCHed first; if any of them changes before EXEC the call fails with
// kv.ErrConflict and nothing is written.
package rediskv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ kv.Transactor = (*Store)(nil)

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "userledger"
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) dataKey(key string) string {
	return s.prefix + ":d:" + key
}

func (s *Store) indexKey() string {
	return s.prefix + ":idx"
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, st kv.Store) error) error {
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		t := &txn{
			reader:  reader{s: s, cmd: tx},
			tx:      tx,
			pending: make(map[string]*[]byte),
		}
		if err := fn(ctx, t); err != nil {
			return err
		}
		return t.commit(ctx)
	})
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: %v", kv.ErrConflict, err)
	}
	return err
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r kv.Reader) error) error {
	return fn(ctx, &reader{s: s, cmd: s.rdb})
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// commander is the part of redis.Cmdable the reader needs; both the client
// and a WATCH transaction provide it.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	ZRangeByLex(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
}

// reader serves committed state.
type reader struct {
	s   *Store
	cmd commander
}

func (r *reader) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	v, err := r.cmd.Get(ctx, r.s.dataKey(string(key))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: redis: %v", kv.ErrStore, err)
	}
	return v, true, nil
}

func (r *reader) keys(ctx context.Context, prefix []byte) ([]string, error) {
	by := &redis.ZRangeBy{Min: "-", Max: "+"}
	if len(prefix) > 0 {
		by.Min = "[" + string(prefix)
		if end := kv.PrefixEnd(prefix); end != nil {
			by.Max = "(" + string(end)
		}
	}
	keys, err := r.cmd.ZRangeByLex(ctx, r.s.indexKey(), by).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis: %v", kv.ErrStore, err)
	}
	return keys, nil
}

func (r *reader) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	keys, err := r.keys(ctx, prefix)
	if err != nil {
		return err
	}
	return r.emit(ctx, keys, r.Get, fn)
}

func (r *reader) emit(ctx context.Context, keys []string, get func(context.Context, []byte) ([]byte, bool, error), fn func(key, value []byte) error) error {
	for _, k := range keys {
		v, ok, err := get(ctx, []byte(k))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

// txn buffers writes; a nil entry in pending marks a delete.
type txn struct {
	reader
	tx      *redis.Tx
	pending map[string]*[]byte
}

func (t *txn) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	k := string(key)
	if v, ok := t.pending[k]; ok {
		if v == nil {
			return nil, false, nil
		}
		return slices.Clone(*v), true, nil
	}
	if err := t.tx.Watch(ctx, t.s.dataKey(k)).Err(); err != nil {
		return nil, false, fmt.Errorf("%w: redis watch: %v", kv.ErrStore, err)
	}
	return t.reader.Get(ctx, key)
}

func (t *txn) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	if err := t.tx.Watch(ctx, t.s.indexKey()).Err(); err != nil {
		return fmt.Errorf("%w: redis watch: %v", kv.ErrStore, err)
	}
	keys, err := t.reader.keys(ctx, prefix)
	if err != nil {
		return err
	}
	p := string(prefix)
	for k, v := range t.pending {
		if v != nil && strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)
	return t.emit(ctx, keys, t.Get, fn)
}

func (t *txn) Set(_ context.Context, key, value []byte) error {
	v := slices.Clone(value)
	if v == nil {
		v = []byte{}
	}
	t.pending[string(key)] = &v
	return nil
}

func (t *txn) Delete(_ context.Context, key []byte) error {
	t.pending[string(key)] = nil
	return nil
}

func (t *txn) commit(ctx context.Context) error {
	if len(t.pending) == 0 {
		return nil
	}
	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range t.pending {
			if v == nil {
				pipe.Del(ctx, t.s.dataKey(k))
				pipe.ZRem(ctx, t.s.indexKey(), k)
				continue
			}
			pipe.Set(ctx, t.s.dataKey(k), *v, 0)
			pipe.ZAdd(ctx, t.s.indexKey(), redis.Z{Score: 0, Member: k})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return err
		}
		return fmt.Errorf("%w: redis exec: %v", kv.ErrStore, err)
	}
	return nil
}
