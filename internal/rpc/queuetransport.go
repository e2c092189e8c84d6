// Package rpc carries cluster.Queue/cluster.Variable traffic between
// processes over gRPC. It deliberately transports only well-known
// protobuf message types (wrapperspb.BytesValue, emptypb.Empty), queue
// and variable names travel as gRPC metadata rather than as message
// fields, so no project-specific .proto file or protoc-generated code is
// needed, while google.golang.org/grpc and google.golang.org/protobuf
// still do the actual marshaling and transport work.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	metaQueueName    = "trialmesh-queue"
	metaVariableName = "trialmesh-variable"
	metaTimeoutMs    = "trialmesh-timeout-ms"
)

// QueueTransportServer is the service a cluster coordinator process
// implements. It is the hand-written equivalent of what
// protoc-gen-go-grpc would emit from a queuetransport.proto declaring
// these four RPCs.
type QueueTransportServer interface {
	Put(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Get(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BytesValue, error)
	SetVariable(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error)
	GetVariable(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BytesValue, error)
}

// RegisterQueueTransportServer attaches srv to s under the service
// descriptor below.
func RegisterQueueTransportServer(s grpc.ServiceRegistrar, srv QueueTransportServer) {
	s.RegisterService(&queueTransportServiceDesc, srv)
}

func _QueueTransport_Put_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueTransportServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trialmesh.QueueTransport/Put"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueTransportServer).Put(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _QueueTransport_Get_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueTransportServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trialmesh.QueueTransport/Get"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueTransportServer).Get(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _QueueTransport_SetVariable_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueTransportServer).SetVariable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trialmesh.QueueTransport/SetVariable"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueTransportServer).SetVariable(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _QueueTransport_GetVariable_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueTransportServer).GetVariable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trialmesh.QueueTransport/GetVariable"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueTransportServer).GetVariable(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var queueTransportServiceDesc = grpc.ServiceDesc{
	ServiceName: "trialmesh.QueueTransport",
	HandlerType: (*QueueTransportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Put", Handler: _QueueTransport_Put_Handler},
		{MethodName: "Get", Handler: _QueueTransport_Get_Handler},
		{MethodName: "SetVariable", Handler: _QueueTransport_SetVariable_Handler},
		{MethodName: "GetVariable", Handler: _QueueTransport_GetVariable_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpc/queuetransport.go",
}

// QueueTransportClient is the client stub, written the way
// protoc-gen-go-grpc would generate it.
type QueueTransportClient interface {
	Put(ctx context.Context, queue string, payload []byte) error
	Get(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	SetVariable(ctx context.Context, name string, payload []byte) error
	GetVariable(ctx context.Context, name string) ([]byte, error)
}

type queueTransportClient struct {
	cc grpc.ClientConnInterface
}

// NewQueueTransportClient builds a client over an established connection.
func NewQueueTransportClient(cc grpc.ClientConnInterface) QueueTransportClient {
	return &queueTransportClient{cc: cc}
}

func (c *queueTransportClient) Put(ctx context.Context, queue string, payload []byte) error {
	ctx = metadata.AppendToOutgoingContext(ctx, metaQueueName, queue)
	out := new(emptypb.Empty)
	return c.cc.Invoke(ctx, "/trialmesh.QueueTransport/Put", wrapperspb.Bytes(payload), out)
}

func (c *queueTransportClient) Get(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, metaQueueName, queue, metaTimeoutMs, strconv.FormatInt(timeout.Milliseconds(), 10))
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/trialmesh.QueueTransport/Get", new(emptypb.Empty), out); err != nil {
		if status.Code(err) == codes.DeadlineExceeded {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	return out.GetValue(), nil
}

func (c *queueTransportClient) SetVariable(ctx context.Context, name string, payload []byte) error {
	ctx = metadata.AppendToOutgoingContext(ctx, metaVariableName, name)
	out := new(emptypb.Empty)
	return c.cc.Invoke(ctx, "/trialmesh.QueueTransport/SetVariable", wrapperspb.Bytes(payload), out)
}

func (c *queueTransportClient) GetVariable(ctx context.Context, name string) ([]byte, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, metaVariableName, name)
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/trialmesh.QueueTransport/GetVariable", new(emptypb.Empty), out); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// metadataValue extracts the first value for key from ctx's incoming
// metadata, the server-side counterpart of AppendToOutgoingContext.
func metadataValue(ctx context.Context, key string) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("rpc: no metadata on request")
	}
	values := md.Get(key)
	if len(values) == 0 {
		return "", fmt.Errorf("rpc: missing metadata key %q", key)
	}
	return values[0], nil
}
