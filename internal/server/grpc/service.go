package grpc

import (
	"context"

	"github.com/dmitrijs2005/userledger/internal/api"
	"google.golang.org/grpc"
)

// registryServer is the handler type checked by RegisterService.
type registryServer interface {
	isRegistryServer()
}

func (s *GRPCServer) isRegistryServer() {}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*registryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodRegister, (*GRPCServer).Register),
		unary(api.MethodSessionStart, (*GRPCServer).SessionStart),
		unary(api.MethodSessionEnd, (*GRPCServer).SessionEnd),
		unary(api.MethodSessionRefresh, (*GRPCServer).SessionRefresh),
		unary(api.MethodSetSessionTimeout, (*GRPCServer).SetSessionTimeout),
		unary(api.MethodMigrate, (*GRPCServer).Migrate),
		unary(api.MethodSelect, (*GRPCServer).Select),
		unary(api.MethodSession, (*GRPCServer).Session),
		unary(api.MethodUser, (*GRPCServer).User),
	},
	Streams: []grpc.StreamDesc{},
}

// unary builds a method descriptor that decodes Req, runs call through the
// interceptor chain and maps its error to a status.
func unary[Req, Resp any](name string, call func(*GRPCServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := api.FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(*GRPCServer), ctx, req.(*Req))
				if err != nil {
					return nil, toStatus(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return h(ctx, in)
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, h)
		},
	}
}
