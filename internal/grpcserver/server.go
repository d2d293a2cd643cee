// Package grpcserver exposes a read-only internal RPC surface over gRPC:
// resolving a short key to its record and reading service-wide counters.
// The service description is hand-written and the messages travel as JSON,
// so no protobuf toolchain is involved.
package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/tinyapp/internal/grpcserver/interceptor"
)

const (
	serviceName = "tinyapp.ResolverService"

	methodResolve = "/" + serviceName + "/Resolve"
	methodStats   = "/" + serviceName + "/Stats"
)

// ResolverServer is the server-side contract of the internal RPC surface.
type ResolverServer interface {
	Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error)
	Stats(ctx context.Context, req *StatsRequest) (*StatsResponse, error)
}

var resolverServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    resolveMethodHandler,
		},
		{
			MethodName: "Stats",
			Handler:    statsMethodHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func resolveMethodHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	unaryInterceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(ResolveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if unaryInterceptor == nil {
		return srv.(ResolverServer).Resolve(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodResolve,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ResolverServer).Resolve(ctx, req.(*ResolveRequest))
	}

	return unaryInterceptor(ctx, in, info, handler)
}

func statsMethodHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	unaryInterceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if unaryInterceptor == nil {
		return srv.(ResolverServer).Stats(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodStats,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ResolverServer).Stats(ctx, req.(*StatsRequest))
	}

	return unaryInterceptor(ctx, in, info, handler)
}

// NewGRPCServer listens on addr and returns a gRPC server with the resolver
// service registered. The caller owns both and is responsible for Serve and
// shutdown.
func NewGRPCServer(addr string, handler ResolverServer) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryLogging(),
		),
	)
	server.RegisterService(&resolverServiceDesc, handler)

	return server, lis, nil
}

// ResolverClient is a thin client over a gRPC connection. Every call is made
// with the JSON content-subtype the server's codec expects.
type ResolverClient struct {
	conn grpc.ClientConnInterface
}

// NewResolverClient wraps an established client connection.
func NewResolverClient(conn grpc.ClientConnInterface) *ResolverClient {
	return &ResolverClient{conn: conn}
}

// Resolve calls the Resolve method.
func (c *ResolverClient) Resolve(ctx context.Context, req *ResolveRequest, opts ...grpc.CallOption) (*ResolveResponse, error) {
	out := new(ResolveResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	err := c.conn.Invoke(ctx, methodResolve, req, out, opts...)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Stats calls the Stats method.
func (c *ResolverClient) Stats(ctx context.Context, req *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	err := c.conn.Invoke(ctx, methodStats, req, out, opts...)
	if err != nil {
		return nil, err
	}

	return out, nil
}
