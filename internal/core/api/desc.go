package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "conditions.v1.ConditionService"

// Full method names.
const (
	MethodValidate           = "/" + ServiceName + "/Validate"
	MethodEvaluate           = "/" + ServiceName + "/Evaluate"
	MethodDescribe           = "/" + ServiceName + "/Describe"
	MethodPutConditionSet    = "/" + ServiceName + "/PutConditionSet"
	MethodGetConditionSet    = "/" + ServiceName + "/GetConditionSet"
	MethodListConditionSets  = "/" + ServiceName + "/ListConditionSets"
	MethodDeleteConditionSet = "/" + ServiceName + "/DeleteConditionSet"
)

// ConditionServer is the server API for the condition service.
// Requests and responses are google.protobuf.Struct values whose fields
// mirror the JSON condition grammar.
type ConditionServer interface {
	Validate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PutConditionSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConditionSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConditionSets(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteConditionSet(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ConditionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a ConditionServer method to a grpc.MethodHandler.
func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConditionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConditionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes ConditionService for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConditionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: unaryHandler(MethodValidate, ConditionServer.Validate)},
		{MethodName: "Evaluate", Handler: unaryHandler(MethodEvaluate, ConditionServer.Evaluate)},
		{MethodName: "Describe", Handler: unaryHandler(MethodDescribe, ConditionServer.Describe)},
		{MethodName: "PutConditionSet", Handler: unaryHandler(MethodPutConditionSet, ConditionServer.PutConditionSet)},
		{MethodName: "GetConditionSet", Handler: unaryHandler(MethodGetConditionSet, ConditionServer.GetConditionSet)},
		{MethodName: "ListConditionSets", Handler: unaryHandler(MethodListConditionSets, ConditionServer.ListConditionSets)},
		{MethodName: "DeleteConditionSet", Handler: unaryHandler(MethodDeleteConditionSet, ConditionServer.DeleteConditionSet)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "conditions/v1/service.proto",
}

// RegisterConditionServer registers srv with s.
func RegisterConditionServer(s grpc.ServiceRegistrar, srv ConditionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ConditionClient is the client API for the condition service.
type ConditionClient struct {
	cc grpc.ClientConnInterface
}

// NewConditionClient wraps cc.
func NewConditionClient(cc grpc.ClientConnInterface) *ConditionClient {
	return &ConditionClient{cc: cc}
}

func (c *ConditionClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConditionClient) Validate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodValidate, in, opts...)
}

func (c *ConditionClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodEvaluate, in, opts...)
}

func (c *ConditionClient) Describe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDescribe, in, opts...)
}

func (c *ConditionClient) PutConditionSet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPutConditionSet, in, opts...)
}

func (c *ConditionClient) GetConditionSet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetConditionSet, in, opts...)
}

func (c *ConditionClient) ListConditionSets(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListConditionSets, in, opts...)
}

func (c *ConditionClient) DeleteConditionSet(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDeleteConditionSet, in, opts...)
}
