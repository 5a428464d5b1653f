package grpc

import (
	"context"

	"github.com/dmitrijs2005/userledger/internal/api"
	"github.com/dmitrijs2005/userledger/internal/server/services"
)

func executeResponse(r *services.Response) *api.ExecuteResponse {
	out := &api.ExecuteResponse{Attributes: make([]api.Attribute, 0, len(r.Attributes))}
	for _, a := range r.Attributes {
		out.Attributes = append(out.Attributes, api.Attribute{Key: a.Key, Value: a.Value})
	}
	return out
}

// execute resolves the caller and hands it to fn.
func (s *GRPCServer) execute(ctx context.Context, fn func(caller string) (*services.Response, error)) (*api.ExecuteResponse, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := fn(caller)
	if err != nil {
		return nil, err
	}
	return executeResponse(resp), nil
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.ExecuteResponse, error) {
	return s.execute(ctx, func(caller string) (*services.Response, error) {
		return s.registry.Register(ctx, caller, req.Profile)
	})
}

func (s *GRPCServer) SessionStart(ctx context.Context, req *api.SessionStartRequest) (*api.ExecuteResponse, error) {
	return s.execute(ctx, func(caller string) (*services.Response, error) {
		return s.registry.SessionStart(ctx, caller, req.Seed)
	})
}

func (s *GRPCServer) SessionEnd(ctx context.Context, req *api.SessionEndRequest) (*api.ExecuteResponse, error) {
	return s.execute(ctx, func(caller string) (*services.Response, error) {
		return s.registry.SessionEnd(ctx, caller, req.Seed)
	})
}

func (s *GRPCServer) SessionRefresh(ctx context.Context, req *api.SessionRefreshRequest) (*api.ExecuteResponse, error) {
	return s.execute(ctx, func(caller string) (*services.Response, error) {
		return s.registry.SessionRefresh(ctx, caller, req.OldSeed, req.NewSeed)
	})
}

func (s *GRPCServer) SetSessionTimeout(ctx context.Context, req *api.SetSessionTimeoutRequest) (*api.ExecuteResponse, error) {
	return s.execute(ctx, func(caller string) (*services.Response, error) {
		return s.registry.SetSessionTimeout(ctx, caller, req.UserID, req.Seconds)
	})
}

func (s *GRPCServer) Migrate(ctx context.Context, _ *api.MigrateRequest) (*api.ExecuteResponse, error) {
	return s.execute(ctx, func(caller string) (*services.Response, error) {
		return s.registry.Migrate(ctx, caller)
	})
}

func (s *GRPCServer) Select(ctx context.Context, req *api.SelectRequest) (*api.SelectResponse, error) {
	res, err := s.registry.Select(ctx, req.Fields, req.Wallet)
	if err != nil {
		return nil, err
	}
	return &api.SelectResponse{Owner: res.Owner, Metadata: res.Metadata, User: res.User}, nil
}

func (s *GRPCServer) Session(ctx context.Context, req *api.SessionRequest) (*api.SessionResponse, error) {
	sess, err := s.registry.Session(ctx, req.Address, req.Seed)
	if err != nil {
		return nil, err
	}
	return &api.SessionResponse{Session: sess}, nil
}

func (s *GRPCServer) User(ctx context.Context, req *api.UserRequest) (*api.UserResponse, error) {
	u, err := s.registry.User(ctx, services.UserTarget{ID: req.ID, Address: req.Address})
	if err != nil {
		return nil, err
	}
	return &api.UserResponse{User: u}, nil
}
