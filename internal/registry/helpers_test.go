package registry

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/kv/memkv"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) (*Registry, *memkv.Store) {
	t.Helper()
	r := New()
	st := memkv.New()
	require.NoError(t, st.Update(context.Background(), func(ctx context.Context, s kv.Store) error {
		return r.Initialize(ctx, s, "wasm1owner", nil)
	}))
	return r, st
}

func update(st kv.Transactor, fn func(ctx context.Context, s kv.Store) error) error {
	return st.Update(context.Background(), fn)
}

func view(t *testing.T, st kv.Transactor, fn func(ctx context.Context, r kv.Reader) error) {
	t.Helper()
	require.NoError(t, st.View(context.Background(), fn))
}

// register runs allocate+register in one call, the way the façade does.
func register(t *testing.T, r *Registry, st kv.Transactor, address string, p models.Profile) uint64 {
	t.Helper()
	var id uint64
	err := update(st, func(ctx context.Context, s kv.Store) error {
		var err error
		if id, err = r.Allocate(ctx, s, address); err != nil {
			return err
		}
		return r.Register(ctx, s, id, p, t0)
	})
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T { return &v }
