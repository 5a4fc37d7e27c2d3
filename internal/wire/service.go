package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service path prefix, matching what a
// protoc-generated stub would derive from a "service Endpoint {...}"
// definition.
const ServiceName = "superpy.Endpoint"

// EndpointServer is the server-side contract a worker endpoint
// implements, plus the handle operations (Status/Refresh/Kill/Cleanup)
// a live handle requires.
type EndpointServer interface {
	ListMethods(ctx context.Context, req *Empty) (*MethodListResp, error)
	EstWaitTime(ctx context.Context, req *PriorityReq) (*LoadResp, error)
	CPULoad(ctx context.Context, req *Empty) (*LoadResp, error)
	Submit(ctx context.Context, req *SubmitReq) (*SubmitResp, error)
	Status(ctx context.Context, req *HandleRef) (*StatusResp, error)
	Refresh(ctx context.Context, req *HandleRef) (*StatusResp, error)
	Kill(ctx context.Context, req *HandleRef) (*Empty, error)
	Cleanup(ctx context.Context, req *HandleRef) (*Empty, error)
	ShowQueue(ctx context.Context, req *Empty) (*QueueDumpResp, error)
	CleanOldTasks(ctx context.Context, req *Empty) (*Empty, error)
	Terminate(ctx context.Context, req *Empty) (*Empty, error)
}

func methodHandler[Req any, Resp any](
	call func(srv EndpointServer, ctx context.Context, req *Req) (*Resp, error),
) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EndpointServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(EndpointServer), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// ServiceDesc is the hand-authored equivalent of what protoc-gen-go-grpc
// would emit for a "service Endpoint" definition. Writing it by hand is
// legitimate here: grpc.Server.RegisterService only needs a ServiceDesc
// value, and grpc.ClientConn.Invoke only needs a method path string —
// neither requires the protobuf wire codec, just a registered
// encoding.Codec (see codec.go).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EndpointServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListMethods", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *Empty) (*MethodListResp, error) { return s.ListMethods(ctx, r) })},
		{MethodName: "EstWaitTime", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *PriorityReq) (*LoadResp, error) { return s.EstWaitTime(ctx, r) })},
		{MethodName: "CPULoad", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *Empty) (*LoadResp, error) { return s.CPULoad(ctx, r) })},
		{MethodName: "Submit", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *SubmitReq) (*SubmitResp, error) { return s.Submit(ctx, r) })},
		{MethodName: "Status", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *HandleRef) (*StatusResp, error) { return s.Status(ctx, r) })},
		{MethodName: "Refresh", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *HandleRef) (*StatusResp, error) { return s.Refresh(ctx, r) })},
		{MethodName: "Kill", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *HandleRef) (*Empty, error) { return s.Kill(ctx, r) })},
		{MethodName: "Cleanup", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *HandleRef) (*Empty, error) { return s.Cleanup(ctx, r) })},
		{MethodName: "ShowQueue", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *Empty) (*QueueDumpResp, error) { return s.ShowQueue(ctx, r) })},
		{MethodName: "CleanOldTasks", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *Empty) (*Empty, error) { return s.CleanOldTasks(ctx, r) })},
		{MethodName: "Terminate", Handler: methodHandler(func(s EndpointServer, ctx context.Context, r *Empty) (*Empty, error) { return s.Terminate(ctx, r) })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "superpy/endpoint.proto",
}

// Client is a thin hand-rolled stub over grpc.ClientConnInterface,
// playing the role a protoc-gen-go-grpc client would.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.ForceCodec(grpcCodec{})}, opts...)
}

func (c *Client) ListMethods(ctx context.Context, opts ...grpc.CallOption) (*MethodListResp, error) {
	out := new(MethodListResp)
	if err := c.cc.Invoke(ctx, fullMethod("ListMethods"), &Empty{}, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) EstWaitTime(ctx context.Context, req *PriorityReq, opts ...grpc.CallOption) (*LoadResp, error) {
	out := new(LoadResp)
	if err := c.cc.Invoke(ctx, fullMethod("EstWaitTime"), req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CPULoad(ctx context.Context, opts ...grpc.CallOption) (*LoadResp, error) {
	out := new(LoadResp)
	if err := c.cc.Invoke(ctx, fullMethod("CPULoad"), &Empty{}, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, req *SubmitReq, opts ...grpc.CallOption) (*SubmitResp, error) {
	out := new(SubmitResp)
	if err := c.cc.Invoke(ctx, fullMethod("Submit"), req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context, req *HandleRef, opts ...grpc.CallOption) (*StatusResp, error) {
	out := new(StatusResp)
	if err := c.cc.Invoke(ctx, fullMethod("Status"), req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, req *HandleRef, opts ...grpc.CallOption) (*StatusResp, error) {
	out := new(StatusResp)
	if err := c.cc.Invoke(ctx, fullMethod("Refresh"), req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Kill(ctx context.Context, req *HandleRef, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, fullMethod("Kill"), req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Cleanup(ctx context.Context, req *HandleRef, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, fullMethod("Cleanup"), req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ShowQueue(ctx context.Context, opts ...grpc.CallOption) (*QueueDumpResp, error) {
	out := new(QueueDumpResp)
	if err := c.cc.Invoke(ctx, fullMethod("ShowQueue"), &Empty{}, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CleanOldTasks(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, fullMethod("CleanOldTasks"), &Empty{}, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Terminate(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, fullMethod("Terminate"), &Empty{}, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// DialOption returns the call option that forces every RPC on this
// client to use the MsgPack codec instead of grpc's default protobuf
// codec.
func DialOption() grpc.CallOption {
	return grpc.ForceCodec(grpcCodec{})
}
