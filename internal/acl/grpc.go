package acl

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userledger/internal/grpcjson"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName     = "acl.v1.ACL"
	isAllowedMethod = "/" + serviceName + "/IsAllowed"
)

type IsAllowedRequest struct {
	ACL       string `json:"acl"`
	Principal string `json:"principal"`
	Action    string `json:"action"`
}

type IsAllowedReply struct {
	Allowed bool `json:"allowed"`
}

// GRPCClient queries a remote access-control service.
type GRPCClient struct {
	conn  grpc.ClientConnInterface
	close func() error
}

func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn, close: func() error { return nil }}
}

// Dial connects to endpoint without transport security.
func Dial(endpoint string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("acl: dial %s: %w", endpoint, err)
	}
	return &GRPCClient{conn: conn, close: conn.Close}, nil
}

func (c *GRPCClient) IsAllowed(ctx context.Context, acl, principal, action string) (bool, error) {
	req := &IsAllowedRequest{ACL: acl, Principal: principal, Action: action}
	var reply IsAllowedReply
	if err := c.conn.Invoke(ctx, isAllowedMethod, req, &reply, grpc.CallContentSubtype(grpcjson.Name)); err != nil {
		return false, fmt.Errorf("acl: is allowed: %w", err)
	}
	return reply.Allowed, nil
}

func (c *GRPCClient) Close() error { return c.close() }

// RegisterServer exposes c as the acl.v1.ACL service on s.
func RegisterServer(s grpc.ServiceRegistrar, c Checker) {
	s.RegisterService(&serviceDesc, c)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Checker)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IsAllowed", Handler: isAllowedHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func isAllowedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IsAllowedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := req.(*IsAllowedRequest)
		ok, err := srv.(Checker).IsAllowed(ctx, r.ACL, r.Principal, r.Action)
		if err != nil {
			return nil, err
		}
		return &IsAllowedReply{Allowed: ok}, nil
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: isAllowedMethod}, call)
}
