package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/kv/memkv"
	"github.com/dmitrijs2005/userledger/internal/logging"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/dmitrijs2005/userledger/internal/registry"
	"github.com/dmitrijs2005/userledger/internal/server/auth"
	servergrpc "github.com/dmitrijs2005/userledger/internal/server/grpc"
	"github.com/dmitrijs2005/userledger/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const (
	secret = "test-secret"
	owner  = "wasm1owner"
)

type testEnv struct {
	dial func(address string) *GRPCClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	svc := services.NewRegistry(memkv.New(), registry.New())
	require.NoError(t, svc.EnsureInstantiated(ctx, owner, nil))

	lis := bufconn.Listen(1 << 20)
	srv := servergrpc.NewGRPCServer("bufnet", logging.Nop(), svc, secret)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testEnv{dial: func(address string) *GRPCClient {
		token := ""
		if address != "" {
			var err error
			token, err = auth.GenerateToken(address, []byte(secret), time.Hour)
			require.NoError(t, err)
		}
		c, err := New("passthrough:///bufnet", token, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	}}
}

func TestClient_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.dial("wasm1alice")

	name := "alice"
	resp, err := alice.Register(ctx, models.Profile{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Attr("user_id"))

	_, err = alice.Register(ctx, models.Profile{})
	require.ErrorIs(t, err, common.ErrUserExists)

	resp, err = alice.SessionStart(ctx, "s1")
	require.NoError(t, err)
	key := resp.Attr("session_key")
	assert.Equal(t, registry.DeriveSessionKey("wasm1alice", 1, "s1"), key)

	_, err = alice.SessionStart(ctx, "s1")
	require.ErrorIs(t, err, common.ErrNotAuthorized)

	anon := env.dial("")
	sess, err := anon.Session(ctx, "wasm1alice", "s1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.EqualValues(t, 1, sess.UserID)

	_, err = alice.SessionRefresh(ctx, "s1", "s2")
	require.NoError(t, err)
	sess, err = anon.Session(ctx, "wasm1alice", "s1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	_, err = alice.SessionEnd(ctx, "s2")
	require.NoError(t, err)

	u, err := anon.UserByAddress(ctx, "wasm1alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", *u.Profile.Username)
	assert.Equal(t, []string{"wasm1alice"}, u.Wallets)

	_, err = anon.UserByID(ctx, 7)
	require.ErrorIs(t, err, common.ErrUserNotFound)

	_, err = anon.Session(ctx, "wasm1ghost", "s")
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestClient_OwnerAndSelect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.dial("wasm1alice")
	_, err := alice.Register(ctx, models.Profile{})
	require.NoError(t, err)

	_, err = alice.SetSessionTimeout(ctx, 1, 10)
	require.ErrorIs(t, err, common.ErrNotAuthorized)

	resp, err := env.dial(owner).SetSessionTimeout(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "10", resp.Attr("session_timeout"))

	_, err = env.dial(owner).Migrate(ctx)
	require.NoError(t, err)

	wallet := "wasm1alice"
	sel, err := alice.Select(ctx, nil, &wallet)
	require.NoError(t, err)
	require.NotNil(t, sel.Owner)
	assert.Equal(t, owner, sel.Owner.Principal)
	assert.EqualValues(t, 1, sel.Metadata.NUsers)
	require.NotNil(t, sel.User)
	assert.EqualValues(t, 10, sel.User.Config.SessionTimeoutSeconds)

	sel, err = alice.Select(ctx, []string{}, &wallet)
	require.NoError(t, err)
	assert.Nil(t, sel.Owner)
	assert.Nil(t, sel.User)
}

func TestClient_ExecuteWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.dial("").SessionStart(context.Background(), "s")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
