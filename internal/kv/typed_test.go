package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/kv/memkv"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name string `json:"name"`
}

func TestItem_LoadSaveUpdate(t *testing.T) {
	ctx := context.Background()
	s := memkv.New()
	counter := kv.NewItem[uint64]("counter")

	err := s.Update(ctx, func(ctx context.Context, st kv.Store) error {
		_, err := counter.Load(ctx, st)
		require.ErrorIs(t, err, kv.ErrNotFound)

		_, ok, err := counter.MayLoad(ctx, st)
		require.NoError(t, err)
		require.False(t, ok)

		require.NoError(t, counter.Save(ctx, st, 0))
		n, err := counter.Update(ctx, st, func(n uint64) (uint64, error) { return n + 1, nil })
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.View(ctx, func(ctx context.Context, r kv.Reader) error {
		n, err := counter.Load(ctx, r)
		require.EqualValues(t, 1, n)
		return err
	}))
}

func TestItem_UpdateErrorKeepsValue(t *testing.T) {
	ctx := context.Background()
	s := memkv.New()
	item := kv.NewItem[uint64]("n")
	boom := errors.New("boom")

	require.NoError(t, s.Update(ctx, func(ctx context.Context, st kv.Store) error {
		require.NoError(t, item.Save(ctx, st, 7))
		_, err := item.Update(ctx, st, func(uint64) (uint64, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
		n, err := item.Load(ctx, st)
		require.EqualValues(t, 7, n)
		return err
	}))
}

func TestMap_CRUDAndScan(t *testing.T) {
	ctx := context.Background()
	s := memkv.New()
	m := kv.NewMap[uint64, record]("records", kv.Uint64Key)
	other := kv.NewMap[uint64, record]("records2", kv.Uint64Key)

	require.NoError(t, s.Update(ctx, func(ctx context.Context, st kv.Store) error {
		for _, id := range []uint64{300, 2, 10} {
			require.NoError(t, m.Save(ctx, st, id, record{Name: "r"}))
		}
		require.NoError(t, other.Save(ctx, st, 1, record{Name: "x"}))
		return nil
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, r kv.Reader) error {
		ok, err := m.Has(ctx, r, 10)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = m.Load(ctx, r, 11)
		require.ErrorIs(t, err, kv.ErrNotFound)

		var ids [][]byte
		require.NoError(t, m.Scan(ctx, r, nil, func(rest []byte, v record) error {
			require.Equal(t, "r", v.Name)
			ids = append(ids, rest)
			return nil
		}))
		require.Equal(t, [][]byte{kv.Uint64Bytes(2), kv.Uint64Bytes(10), kv.Uint64Bytes(300)}, ids)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(ctx context.Context, st kv.Store) error {
		return m.Remove(ctx, st, 10)
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, r kv.Reader) error {
		ok, err := m.Has(ctx, r, 10)
		require.False(t, ok)
		return err
	}))
}

func TestMap_UpdateSeesPresence(t *testing.T) {
	ctx := context.Background()
	s := memkv.New()
	m := kv.NewMap[string, record]("by_name", kv.StringKey)
	taken := errors.New("taken")

	create := func(ctx context.Context, st kv.Store) error {
		_, err := m.Update(ctx, st, "k", func(_ record, exists bool) (record, error) {
			if exists {
				return record{}, taken
			}
			return record{Name: "first"}, nil
		})
		return err
	}
	require.NoError(t, s.Update(ctx, create))
	require.ErrorIs(t, s.Update(ctx, create), taken)
}

func TestLoad_CorruptValueIsStoreError(t *testing.T) {
	ctx := context.Background()
	s := memkv.New()
	item := kv.NewItem[uint64]("n")

	require.NoError(t, s.Update(ctx, func(ctx context.Context, st kv.Store) error {
		return st.Set(ctx, item.Key(), []byte("not-json"))
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, r kv.Reader) error {
		_, err := item.Load(ctx, r)
		require.ErrorIs(t, err, kv.ErrStore)
		return nil
	}))
}
