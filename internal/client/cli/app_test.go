package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/userledger/internal/api"
	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/models"
	"github.com/dmitrijs2005/userledger/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	calls   []string
	profile models.Profile
	fields  []string
	wallet  *string
	session *models.Session
	seed    string
	err     error
}

func (f *fakeRegistry) exec(name string) (*api.ExecuteResponse, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	return &api.ExecuteResponse{Attributes: []api.Attribute{{Key: "action", Value: name}}}, nil
}

func (f *fakeRegistry) Register(_ context.Context, p models.Profile) (*api.ExecuteResponse, error) {
	f.profile = p
	return f.exec("register")
}
func (f *fakeRegistry) SessionStart(_ context.Context, seed string) (*api.ExecuteResponse, error) {
	f.seed = seed
	return f.exec("session_start")
}
func (f *fakeRegistry) SessionEnd(context.Context, string) (*api.ExecuteResponse, error) {
	return f.exec("session_end")
}
func (f *fakeRegistry) SessionRefresh(context.Context, string, string) (*api.ExecuteResponse, error) {
	return f.exec("session_refresh")
}
func (f *fakeRegistry) SetSessionTimeout(context.Context, uint64, uint64) (*api.ExecuteResponse, error) {
	return f.exec("set_session_timeout")
}
func (f *fakeRegistry) Migrate(context.Context) (*api.ExecuteResponse, error) {
	return f.exec("migrate")
}
func (f *fakeRegistry) Select(_ context.Context, fields []string, wallet *string) (*api.SelectResponse, error) {
	f.calls = append(f.calls, "select")
	f.fields, f.wallet = fields, wallet
	return &api.SelectResponse{Metadata: &models.RegistryMetadata{NUsers: 2}}, f.err
}
func (f *fakeRegistry) Session(context.Context, string, string) (*models.Session, error) {
	f.calls = append(f.calls, "session")
	return f.session, f.err
}
func (f *fakeRegistry) UserByID(_ context.Context, id uint64) (*models.User, error) {
	f.calls = append(f.calls, "user_by_id")
	return &models.User{ID: id}, f.err
}
func (f *fakeRegistry) UserByAddress(context.Context, string) (*models.User, error) {
	f.calls = append(f.calls, "user_by_address")
	return &models.User{ID: 7}, f.err
}

func run(t *testing.T, f *fakeRegistry, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewApp(f, &out).Run(context.Background(), args)
	return out.String(), err
}

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		args []string
		call string
	}{
		{[]string{"register"}, "register"},
		{[]string{"session-start", "s1"}, "session_start"},
		{[]string{"session-end", "s1"}, "session_end"},
		{[]string{"session-refresh", "s1", "s2"}, "session_refresh"},
		{[]string{"set-timeout", "1", "60"}, "set_session_timeout"},
		{[]string{"migrate"}, "migrate"},
		{[]string{"select"}, "select"},
		{[]string{"session", "addr", "s1"}, "session"},
		{[]string{"user", "id", "3"}, "user_by_id"},
		{[]string{"user", "address", "addr"}, "user_by_address"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			f := &fakeRegistry{}
			_, err := run(t, f, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.call}, f.calls)
		})
	}
}

func TestRun_RegisterProfile(t *testing.T) {
	f := &fakeRegistry{}
	out, err := run(t, f, "register", `{"username":"alice"}`)
	require.NoError(t, err)
	require.NotNil(t, f.profile.Username)
	assert.Equal(t, "alice", *f.profile.Username)
	assert.Contains(t, out, `"value": "register"`)

	_, err = run(t, f, "register", `{`)
	assert.ErrorContains(t, err, "profile")
}

func TestRun_SessionStartGeneratesSeed(t *testing.T) {
	f := &fakeRegistry{}
	out, err := run(t, f, "session-start")
	require.NoError(t, err)
	assert.Len(t, f.seed, 2*seedBytes)
	assert.Contains(t, out, f.seed)

	f = &fakeRegistry{}
	out, err = run(t, f, "session-start", "mine")
	require.NoError(t, err)
	assert.Equal(t, "mine", f.seed)
	assert.NotContains(t, out, `"seed"`)
}

func TestRun_SelectArgs(t *testing.T) {
	f := &fakeRegistry{}
	out, err := run(t, f, "select", "-wallet", "w1", "user", "metadata")
	require.NoError(t, err)
	require.NotNil(t, f.wallet)
	assert.Equal(t, "w1", *f.wallet)
	assert.Equal(t, []string{"user", "metadata"}, f.fields)
	assert.Contains(t, out, `"n_users": 2`)

	_, err = run(t, f, "select")
	require.NoError(t, err)
	assert.Nil(t, f.fields)
	assert.Nil(t, f.wallet)
}

func TestRun_SessionMissingPrintsNull(t *testing.T) {
	out, err := run(t, &fakeRegistry{}, "session", "addr", "seed")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)

	f := &fakeRegistry{session: &models.Session{UserID: 1, Address: "addr"}}
	out, err = run(t, f, "session", "addr", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, `"address": "addr"`)
}

func TestRun_UsageErrors(t *testing.T) {
	cases := [][]string{
		nil,
		{"bogus"},
		{"session-start", "a", "b"},
		{"session-refresh", "a"},
		{"set-timeout", "1"},
		{"session", "a"},
		{"user", "id"},
		{"user", "name", "x"},
	}
	for _, args := range cases {
		_, err := run(t, &fakeRegistry{}, args...)
		assert.ErrorIs(t, err, ErrUsage, "args %v", args)
	}

	_, err := run(t, &fakeRegistry{}, "set-timeout", "x", "1")
	assert.ErrorContains(t, err, "user id")
	_, err = run(t, &fakeRegistry{}, "user", "id", "-1")
	assert.ErrorContains(t, err, "user id")
}

func TestRun_PropagatesRegistryError(t *testing.T) {
	f := &fakeRegistry{err: common.ErrNotAuthorized}
	_, err := run(t, f, "set-timeout", "1", "60")
	assert.True(t, errors.Is(err, common.ErrNotAuthorized))
}

func TestRun_Help(t *testing.T) {
	out, err := run(t, &fakeRegistry{}, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "session-refresh")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("USERLEDGER_SENDER", "env-sender")

	cfg, rest, err := LoadConfig([]string{"-a", "10.0.0.1:1", "-s", "k", "session-start", "seed"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:1", cfg.ServerEndpointAddr)
	assert.Equal(t, "env-sender", cfg.Sender)
	assert.Equal(t, []string{"session-start", "seed"}, rest)

	_, _, err = LoadConfig([]string{"-timeout", "soon"})
	assert.ErrorContains(t, err, "parse flags")
}

func TestConfig_Token(t *testing.T) {
	c := &Config{AccessToken: "given", SecretKey: "k", Sender: "s", TokenValidity: time.Minute}
	tok, err := c.Token()
	require.NoError(t, err)
	assert.Equal(t, "given", tok)

	c.AccessToken = ""
	tok, err = c.Token()
	require.NoError(t, err)
	addr, err := auth.GetAddressFromToken(tok, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "s", addr)

	c.SecretKey = ""
	tok, err = c.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)
}
