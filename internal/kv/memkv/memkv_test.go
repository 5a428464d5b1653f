package memkv

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/kv/kvtest"
	"github.com/stretchr/testify/require"
)

func TestContract(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Transactor { return New() })
}

func TestUpdate_CanceledContextDiscardsWrites(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Update(ctx, func(ctx context.Context, st kv.Store) error {
		require.NoError(t, st.Set(ctx, []byte("a"), []byte("1")))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, s.Len())
}

func TestGet_ReturnsCopies(t *testing.T) {
	s := New()
	require.NoError(t, s.Update(context.Background(), func(ctx context.Context, st kv.Store) error {
		return st.Set(ctx, []byte("a"), []byte("xyz"))
	}))

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, r kv.Reader) error {
		v, _, err := r.Get(ctx, []byte("a"))
		v[0] = 'Q'
		return err
	}))

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, r kv.Reader) error {
		v, _, err := r.Get(ctx, []byte("a"))
		require.Equal(t, "xyz", string(v))
		return err
	}))
}
