package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "kipubank.v1.Custody"

// CustodyServer is the server API for the Custody service.
// Every message is a google.protobuf.Struct.
type CustodyServer interface {
	Deposit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Withdraw(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalanceUSD(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTotalUSD(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPriceBinding(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecoverBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecoveries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GrantPermission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RevokePermission(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CustodyServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// CustodyServiceDesc describes the Custody service for grpc.Server.RegisterService
var CustodyServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CustodyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deposit", Handler: unaryHandler("Deposit", CustodyServer.Deposit)},
		{MethodName: "Withdraw", Handler: unaryHandler("Withdraw", CustodyServer.Withdraw)},
		{MethodName: "GetBalance", Handler: unaryHandler("GetBalance", CustodyServer.GetBalance)},
		{MethodName: "GetBalanceUSD", Handler: unaryHandler("GetBalanceUSD", CustodyServer.GetBalanceUSD)},
		{MethodName: "GetTotalUSD", Handler: unaryHandler("GetTotalUSD", CustodyServer.GetTotalUSD)},
		{MethodName: "SetPriceBinding", Handler: unaryHandler("SetPriceBinding", CustodyServer.SetPriceBinding)},
		{MethodName: "RecoverBalance", Handler: unaryHandler("RecoverBalance", CustodyServer.RecoverBalance)},
		{MethodName: "ListRecoveries", Handler: unaryHandler("ListRecoveries", CustodyServer.ListRecoveries)},
		{MethodName: "GrantPermission", Handler: unaryHandler("GrantPermission", CustodyServer.GrantPermission)},
		{MethodName: "RevokePermission", Handler: unaryHandler("RevokePermission", CustodyServer.RevokePermission)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kipubank/v1/custody.proto",
}

// RegisterCustodyServer registers srv on s
func RegisterCustodyServer(s grpc.ServiceRegistrar, srv CustodyServer) {
	s.RegisterService(&CustodyServiceDesc, srv)
}

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CustodyServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CustodyServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CustodyClient calls the Custody service over a client connection
type CustodyClient struct {
	cc grpc.ClientConnInterface
}

// NewCustodyClient creates a new CustodyClient instance
func NewCustodyClient(cc grpc.ClientConnInterface) *CustodyClient {
	return &CustodyClient{cc: cc}
}

// Call invokes method (e.g. "Deposit") with req
func (c *CustodyClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
