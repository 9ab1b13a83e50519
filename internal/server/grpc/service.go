package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// controlPlaneServer is the full internal RPC surface; Server implements it.
type controlPlaneServer interface {
	Backup(context.Context, *BackupRequest) (*BackupResponse, error)
	PushFanOut(context.Context, *PushFanOutRequest) (*PushFanOutResponse, error)
}

var _ controlPlaneServer = (*Server)(nil)

func backupHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BackupRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlPlaneServer).Backup(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vaultkeep.internal.ControlPlane/Backup"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlPlaneServer).Backup(ctx, req.(*BackupRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func pushFanOutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PushFanOutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(controlPlaneServer).PushFanOut(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/vaultkeep.internal.ControlPlane/PushFanOut"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(controlPlaneServer).PushFanOut(ctx, req.(*PushFanOutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would normally generate from a control_plane.proto file. See codec.go
// and this package's doc comment for why: no `.proto` toolchain is
// available here, so the two RPCs are registered directly against
// grpc.ServiceDesc with a gob-based encoding.Codec standing in for proto
// wire format.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "vaultkeep.internal.ControlPlane",
	HandlerType: (*controlPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Backup", Handler: backupHandler},
		{MethodName: "PushFanOut", Handler: pushFanOutHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/server/grpc/control_plane.proto",
}

// Register attaches Server to grpcServer as the control plane service.
func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&ServiceDesc, s)
}
