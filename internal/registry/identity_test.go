package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_IDsStartAtOneAndIncrease(t *testing.T) {
	r, st := newTestRegistry(t)

	a := register(t, r, st, "wasm1alice", models.Profile{})
	b := register(t, r, st, "wasm1bob", models.Profile{})
	c := register(t, r, st, "wasm1carol", models.Profile{})

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{a, b, c})

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		n, err := r.UserCount(ctx, s)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
		return nil
	})
}

func TestRegister_TwiceFailsAndLeavesFirstRecord(t *testing.T) {
	r, st := newTestRegistry(t)
	first := models.Profile{Username: ptr("alice"), Email: ptr("a@example.org")}
	id := register(t, r, st, "wasm1alice", first)

	err := update(st, func(ctx context.Context, s kv.Store) error {
		nid, err := r.Allocate(ctx, s, "wasm1alice")
		if err != nil {
			return err
		}
		return r.Register(ctx, s, nid, models.Profile{Username: ptr("mallory")}, t0)
	})
	require.ErrorIs(t, err, common.ErrUserExists)

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		got, err := r.ResolveID(ctx, s, "wasm1alice")
		require.NoError(t, err)
		assert.Equal(t, id, got)

		u, err := r.LoadUser(ctx, s, id)
		require.NoError(t, err)
		assert.Equal(t, first, u.Profile)

		n, err := r.UserCount(ctx, s)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		return nil
	})
}

func TestRegister_FailedCallLeavesNoTrace(t *testing.T) {
	r, st := newTestRegistry(t)
	boom := errors.New("boom")

	err := update(st, func(ctx context.Context, s kv.Store) error {
		if _, err := r.Allocate(ctx, s, "wasm1alice"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		ok, err := r.UserExists(ctx, s, "wasm1alice")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	// the id was not consumed
	assert.EqualValues(t, 1, register(t, r, st, "wasm1alice", models.Profile{}))
}

func TestLoadUser_ReadModel(t *testing.T) {
	r, st := newTestRegistry(t)
	profile := models.Profile{
		Username: ptr("alice"),
		Location: &models.Geolocation{City: ptr("Riga")},
		Socials:  []models.SocialMediaID{{Network: models.Discord, Handle: "alice#1"}},
	}
	id := register(t, r, st, "wasm1alice", profile)

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		got, err := r.LoadUser(ctx, s, id)
		require.NoError(t, err)

		want := &models.User{
			ID:       id,
			Metadata: models.Metadata{CreatedAt: t0, UpdatedAt: t0},
			Profile:  profile,
			Wallets:  []string{"wasm1alice"},
			Config:   models.UserConfig{SessionTimeoutSeconds: DefaultSessionTimeout},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("LoadUser mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestLoadWallets_AscendingAndScopedToID(t *testing.T) {
	r, st := newTestRegistry(t)
	id := register(t, r, st, "wasm1zed", models.Profile{})
	other := register(t, r, st, "wasm1other", models.Profile{})

	// Extra wallets are linked straight through the reverse index.
	require.NoError(t, update(st, func(ctx context.Context, s kv.Store) error {
		for _, a := range []string{"wasm1bbb", "wasm1aaa"} {
			if err := idToAddress.Save(ctx, s, walletKey{id: id, address: a}, true); err != nil {
				return err
			}
		}
		return nil
	}))

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		w, err := r.LoadWallets(ctx, s, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"wasm1aaa", "wasm1bbb", "wasm1zed"}, w)

		w, err = r.LoadWallets(ctx, s, other)
		require.NoError(t, err)
		assert.Equal(t, []string{"wasm1other"}, w)

		w, err = r.LoadWallets(ctx, s, 99)
		require.NoError(t, err)
		assert.Empty(t, w)
		return nil
	})
}

func TestResolveAndLoad_Unknown(t *testing.T) {
	r, st := newTestRegistry(t)

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		_, err := r.ResolveID(ctx, s, "wasm1nobody")
		require.ErrorIs(t, err, common.ErrUserNotFound)

		_, err = r.LoadUser(ctx, s, 42)
		require.ErrorIs(t, err, common.ErrUserNotFound)
		return nil
	})
}

func TestSetSessionTimeout(t *testing.T) {
	r, st := newTestRegistry(t)
	id := register(t, r, st, "wasm1alice", models.Profile{})

	require.NoError(t, update(st, func(ctx context.Context, s kv.Store) error {
		return r.SetSessionTimeout(ctx, s, id, 60)
	}))
	err := update(st, func(ctx context.Context, s kv.Store) error {
		return r.SetSessionTimeout(ctx, s, 7, 60)
	})
	require.ErrorIs(t, err, common.ErrUserNotFound)

	view(t, st, func(ctx context.Context, s kv.Reader) error {
		u, err := r.LoadUser(ctx, s, id)
		require.NoError(t, err)
		assert.EqualValues(t, 60, u.Config.SessionTimeoutSeconds)
		assert.Equal(t, t0, u.Metadata.UpdatedAt)
		return nil
	})
}

func TestWithDefaultSessionTimeout(t *testing.T) {
	r := New(WithDefaultSessionTimeout(10))
	assert.EqualValues(t, 10, r.DefaultTimeout())
	assert.EqualValues(t, DefaultSessionTimeout, New().DefaultTimeout())
}
