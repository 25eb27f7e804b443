package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "echorank.attest.v1.Attestor"

// AttestorServer is the server API for the Attestor gRPC service.
//
// Messages are protobuf well-known types so the package needs no codegen.
// Struct payloads carry the same field names as the HTTP JSON API.
type AttestorServer interface {
	Attest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Verify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VerifyAggregate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterKey(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	PublicKey(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedAttestorServer can be embedded to have forward compatible implementations.
type UnimplementedAttestorServer struct{}

func (UnimplementedAttestorServer) Attest(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Attest not implemented")
}
func (UnimplementedAttestorServer) Verify(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Verify not implemented")
}
func (UnimplementedAttestorServer) VerifyAggregate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyAggregate not implemented")
}
func (UnimplementedAttestorServer) RegisterKey(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterKey not implemented")
}
func (UnimplementedAttestorServer) PublicKey(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PublicKey not implemented")
}

// RegisterAttestorServer registers the Attestor service on a gRPC server.
func RegisterAttestorServer(s grpc.ServiceRegistrar, srv AttestorServer) {
	s.RegisterService(&Attestor_ServiceDesc, srv)
}

// AttestorClient is the client API for the Attestor gRPC service.
type AttestorClient interface {
	Attest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Verify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	VerifyAggregate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RegisterKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	PublicKey(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type attestorClient struct{ cc grpc.ClientConnInterface }

func NewAttestorClient(cc grpc.ClientConnInterface) AttestorClient { return &attestorClient{cc: cc} }

func (c *attestorClient) Attest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Attest", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *attestorClient) Verify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Verify", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *attestorClient) VerifyAggregate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/VerifyAggregate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *attestorClient) RegisterKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RegisterKey", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *attestorClient) PublicKey(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/PublicKey", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Attestor_Attest_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttestorServer).Attest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Attest"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttestorServer).Attest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Attestor_Verify_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttestorServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Verify"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttestorServer).Verify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Attestor_VerifyAggregate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttestorServer).VerifyAggregate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/VerifyAggregate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttestorServer).VerifyAggregate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Attestor_RegisterKey_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttestorServer).RegisterKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RegisterKey"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttestorServer).RegisterKey(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _Attestor_PublicKey_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AttestorServer).PublicKey(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PublicKey"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AttestorServer).PublicKey(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Attestor_ServiceDesc is the grpc.ServiceDesc for the Attestor service.
var Attestor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AttestorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Attest", Handler: _Attestor_Attest_Handler},
		{MethodName: "Verify", Handler: _Attestor_Verify_Handler},
		{MethodName: "VerifyAggregate", Handler: _Attestor_VerifyAggregate_Handler},
		{MethodName: "RegisterKey", Handler: _Attestor_RegisterKey_Handler},
		{MethodName: "PublicKey", Handler: _Attestor_PublicKey_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "attestor.proto",
}
