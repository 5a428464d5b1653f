// Package kvtest holds the behavioural contract every kv.Transactor
// implementation is tested against.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) kv.Transactor

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGetDelete", func(t *testing.T) { testSetGetDelete(t, newStore(t)) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollbackOnError(t, newStore(t)) })
	t.Run("ScanOrderedAndIsolated", func(t *testing.T) { testScan(t, newStore(t)) })
	t.Run("ScanSeesStagedWrites", func(t *testing.T) { testScanStaged(t, newStore(t)) })
	t.Run("ScanStopsOnError", func(t *testing.T) { testScanStop(t, newStore(t)) })
	t.Run("BinaryKeys", func(t *testing.T) { testBinaryKeys(t, newStore(t)) })
}

func put(t *testing.T, s kv.Transactor, pairs ...string) {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	err := s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		for i := 0; i < len(pairs); i += 2 {
			if err := st.Set(ctx, []byte(pairs[i]), []byte(pairs[i+1])); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func get(t *testing.T, s kv.Transactor, key string) (string, bool) {
	t.Helper()
	var (
		val string
		ok  bool
	)
	err := s.View(context.Background(), func(ctx context.Context, r kv.Reader) error {
		raw, found, err := r.Get(ctx, []byte(key))
		val, ok = string(raw), found
		return err
	})
	require.NoError(t, err)
	return val, ok
}

func scanKeys(t *testing.T, s kv.Transactor, prefix string) []string {
	t.Helper()
	var keys []string
	err := s.View(context.Background(), func(ctx context.Context, r kv.Reader) error {
		return r.Scan(ctx, []byte(prefix), func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	require.NoError(t, err)
	return keys
}

func testGetMissing(t *testing.T, s kv.Transactor) {
	_, ok := get(t, s, "nope")
	require.False(t, ok)
}

func testSetGetDelete(t *testing.T, s kv.Transactor) {
	put(t, s, "a", "1")
	v, ok := get(t, s, "a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	put(t, s, "a", "2")
	v, _ = get(t, s, "a")
	require.Equal(t, "2", v)

	err := s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		if err := st.Delete(ctx, []byte("a")); err != nil {
			return err
		}
		return st.Delete(ctx, []byte("never-existed"))
	})
	require.NoError(t, err)
	_, ok = get(t, s, "a")
	require.False(t, ok)
}

func testReadYourWrites(t *testing.T, s kv.Transactor) {
	put(t, s, "k", "old")
	err := s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		require.NoError(t, st.Set(ctx, []byte("k"), []byte("new")))
		v, ok, err := st.Get(ctx, []byte("k"))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "new", string(v))

		require.NoError(t, st.Delete(ctx, []byte("k")))
		_, ok, err = st.Get(ctx, []byte("k"))
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	})
	require.NoError(t, err)
	_, ok := get(t, s, "k")
	require.False(t, ok)
}

func testRollbackOnError(t *testing.T, s kv.Transactor) {
	put(t, s, "keep", "v1")
	sentinel := errors.New("abort call")

	err := s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		require.NoError(t, st.Set(ctx, []byte("keep"), []byte("v2")))
		require.NoError(t, st.Set(ctx, []byte("fresh"), []byte("x")))
		require.NoError(t, st.Delete(ctx, []byte("keep")))
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	v, ok := get(t, s, "keep")
	require.True(t, ok)
	require.Equal(t, "v1", v)
	_, ok = get(t, s, "fresh")
	require.False(t, ok)
}

func testScan(t *testing.T, s kv.Transactor) {
	put(t, s,
		"user/3", "c",
		"user/1", "a",
		"user/2", "b",
		"users", "other-region",
		"use", "short",
		"v", "after",
	)
	require.Equal(t, []string{"user/1", "user/2", "user/3"}, scanKeys(t, s, "user/"))
	require.Equal(t, []string{"use", "user/1", "user/2", "user/3", "users"}, scanKeys(t, s, "use"))
	require.Empty(t, scanKeys(t, s, "zzz"))
	require.Len(t, scanKeys(t, s, ""), 6)
}

func testScanStaged(t *testing.T, s kv.Transactor) {
	put(t, s, "p/1", "a", "p/3", "c")
	err := s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		require.NoError(t, st.Set(ctx, []byte("p/2"), []byte("b")))
		require.NoError(t, st.Delete(ctx, []byte("p/3")))
		var got []string
		err := st.Scan(ctx, []byte("p/"), func(k, v []byte) error {
			got = append(got, string(k)+"="+string(v))
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []string{"p/1=a", "p/2=b"}, got)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"p/1", "p/2"}, scanKeys(t, s, "p/"))
}

func testScanStop(t *testing.T, s kv.Transactor) {
	put(t, s, "s/1", "a", "s/2", "b", "s/3", "c")
	stop := errors.New("stop")
	seen := 0
	err := s.View(context.Background(), func(ctx context.Context, r kv.Reader) error {
		return r.Scan(ctx, []byte("s/"), func(_, _ []byte) error {
			seen++
			if seen == 2 {
				return stop
			}
			return nil
		})
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 2, seen)
}

func testBinaryKeys(t *testing.T, s kv.Transactor) {
	ns := kv.Namespace("bin")
	k1 := kv.Join(ns, kv.Uint64Bytes(1))
	k2 := kv.Join(ns, kv.Uint64Bytes(256))
	k3 := kv.Join(ns, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})

	err := s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		for _, k := range [][]byte{k3, k1, k2} {
			if err := st.Set(ctx, k, []byte{0x00, 0x01}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var got [][]byte
	err = s.View(context.Background(), func(ctx context.Context, r kv.Reader) error {
		return r.Scan(ctx, ns, func(k, v []byte) error {
			require.Equal(t, []byte{0x00, 0x01}, v)
			got = append(got, append([]byte(nil), k...))
			return nil
		})
	})
	require.NoError(t, err)
	require.Equal(t, [][]byte{k1, k2, k3}, got)
}
