package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/userledger/internal/api"
	"github.com/dmitrijs2005/userledger/internal/common"
	"github.com/dmitrijs2005/userledger/internal/server/auth"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const callerKey ctxKey = "caller"

// callerFrom returns the address asserted by the access token.
func callerFrom(ctx context.Context) (string, error) {
	caller, ok := ctx.Value(callerKey).(string)
	if !ok || caller == "" {
		return "", status.Error(codes.Unauthenticated, "missing caller")
	}
	return caller, nil
}

// requestInterceptor tags every call with a request id and logs its outcome.
func (s *GRPCServer) requestInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	id := uuid.NewString()
	_ = grpc.SetHeader(ctx, metadata.Pairs(common.RequestIDHeaderName, id))

	start := time.Now()
	resp, err := handler(ctx, req)

	log := s.logger.With("request_id", id, "method", info.FullMethod, "duration", time.Since(start))
	if err != nil {
		log.Warn(ctx, "request failed", "code", status.Code(err).String(), "error", err)
	} else {
		log.Info(ctx, "request")
	}
	return resp, err
}

// accessTokenInterceptor puts the token's address into the context of
// execute calls; queries pass through unauthenticated.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !api.IsExecute(info.FullMethod) {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	address, err := auth.GetAddressFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, callerKey, address)
	return handler(ctx, req)
}
