// Package client is a Go client for the userledger.v1.Registry service.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/userledger/internal/api"
	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/grpcjson"
	"github.com/dmitrijs2005/userledger/internal/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var ErrUnavailable = errors.New("registry unavailable")

type GRPCClient struct {
	conn        grpc.ClientConnInterface
	close       func() error
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// New connects to endpointURL. accessToken is attached to execute calls and
// may be empty for query-only use.
func New(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn, close: conn.Close, accessToken: accessToken}, nil
}

func (s *GRPCClient) Close() error {
	return s.close()
}

func (s *GRPCClient) invoke(ctx context.Context, method string, req, reply any) error {
	if s.accessToken != "" && api.IsExecute(api.FullMethod(method)) {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	err := s.conn.Invoke(ctx, api.FullMethod(method), req, reply, grpc.CallContentSubtype(grpcjson.Name))
	return s.mapError(err)
}

func (s *GRPCClient) execute(ctx context.Context, method string, req any) (*api.ExecuteResponse, error) {
	var resp api.ExecuteResponse
	if err := s.invoke(ctx, method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) Register(ctx context.Context, profile models.Profile) (*api.ExecuteResponse, error) {
	return s.execute(ctx, api.MethodRegister, &api.RegisterRequest{Profile: profile})
}

func (s *GRPCClient) SessionStart(ctx context.Context, seed string) (*api.ExecuteResponse, error) {
	return s.execute(ctx, api.MethodSessionStart, &api.SessionStartRequest{Seed: seed})
}

func (s *GRPCClient) SessionEnd(ctx context.Context, seed string) (*api.ExecuteResponse, error) {
	return s.execute(ctx, api.MethodSessionEnd, &api.SessionEndRequest{Seed: seed})
}

func (s *GRPCClient) SessionRefresh(ctx context.Context, oldSeed, newSeed string) (*api.ExecuteResponse, error) {
	return s.execute(ctx, api.MethodSessionRefresh, &api.SessionRefreshRequest{OldSeed: oldSeed, NewSeed: newSeed})
}

func (s *GRPCClient) SetSessionTimeout(ctx context.Context, userID, seconds uint64) (*api.ExecuteResponse, error) {
	return s.execute(ctx, api.MethodSetSessionTimeout, &api.SetSessionTimeoutRequest{UserID: userID, Seconds: seconds})
}

func (s *GRPCClient) Migrate(ctx context.Context) (*api.ExecuteResponse, error) {
	return s.execute(ctx, api.MethodMigrate, &api.MigrateRequest{})
}

func (s *GRPCClient) Select(ctx context.Context, fields []string, wallet *string) (*api.SelectResponse, error) {
	var resp api.SelectResponse
	if err := s.invoke(ctx, api.MethodSelect, &api.SelectRequest{Fields: fields, Wallet: wallet}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session returns nil without error when no live session exists.
func (s *GRPCClient) Session(ctx context.Context, address, seed string) (*models.Session, error) {
	var resp api.SessionResponse
	if err := s.invoke(ctx, api.MethodSession, &api.SessionRequest{Address: address, Seed: seed}, &resp); err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (s *GRPCClient) UserByID(ctx context.Context, id uint64) (*models.User, error) {
	return s.user(ctx, &api.UserRequest{ID: &id})
}

func (s *GRPCClient) UserByAddress(ctx context.Context, address string) (*models.User, error) {
	return s.user(ctx, &api.UserRequest{Address: &address})
}

func (s *GRPCClient) user(ctx context.Context, req *api.UserRequest) (*models.User, error) {
	var resp api.UserResponse
	if err := s.invoke(ctx, api.MethodUser, req, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// mapError turns status codes back into the registry's sentinel errors.
func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	msg := st.Message()

	var sentinel error
	switch st.Code() {
	case codes.PermissionDenied:
		sentinel = common.ErrNotAuthorized
	case codes.AlreadyExists:
		sentinel = common.ErrUserExists
		if strings.HasPrefix(msg, common.ErrAlreadyInstantiated.Error()) {
			sentinel = common.ErrAlreadyInstantiated
		}
	case codes.NotFound:
		sentinel = common.ErrUserNotFound
		if strings.HasPrefix(msg, common.ErrSessionNotFound.Error()) {
			sentinel = common.ErrSessionNotFound
		}
	case codes.FailedPrecondition:
		sentinel = common.ErrSessionExpired
		if strings.HasPrefix(msg, common.ErrNotInstantiated.Error()) {
			sentinel = common.ErrNotInstantiated
		}
	case codes.InvalidArgument:
		sentinel = common.ErrInvalidRequest
	case codes.Unauthenticated:
		sentinel = common.ErrInvalidToken
		if msg == common.ErrTokenExpired.Error() {
			sentinel = common.ErrTokenExpired
		}
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
