package cluster

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
)

// QueueTransportClient is the subset of internal/rpc.QueueTransportClient
// this package depends on. Declared locally (rather than importing
// internal/rpc) to keep cluster a leaf package, internal/rpc imports
// cluster for its Coordinator, so the reverse import would cycle.
type QueueTransportClient interface {
	Put(ctx context.Context, queue string, payload []byte) error
	Get(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	SetVariable(ctx context.Context, name string, payload []byte) error
	GetVariable(ctx context.Context, name string) ([]byte, error)
}

// ErrSubmitUnsupported is returned by GRPCClient.Submit: a gRPC transport
// moves bytes, not closures, so a distributed worker process joins by
// running the CLI's worker command and polling its own private queue
// rather than receiving a WorkFunc pushed from the coordinator.
var ErrSubmitUnsupported = errors.New("cluster: Submit is not supported over the gRPC transport; run a worker process instead")

// GRPCClient adapts a QueueTransportClient into a cluster.Client, for the
// real multi-process distributed backend.
type GRPCClient struct {
	transport QueueTransportClient
	conn      *grpc.ClientConn
}

// NewGRPCClient builds a Client over conn, an already-dialed connection to
// a cluster coordinator, issuing queue and variable calls through
// transport.
func NewGRPCClient(conn *grpc.ClientConn, transport QueueTransportClient) *GRPCClient {
	return &GRPCClient{transport: transport, conn: conn}
}

func (c *GRPCClient) Queue(name string) Queue {
	return &grpcQueue{transport: c.transport, name: name}
}

func (c *GRPCClient) Variable(name string) Variable {
	return &grpcVariable{transport: c.transport, name: name}
}

func (c *GRPCClient) Submit(context.Context, TaskContext, WorkFunc) (Future, error) {
	return nil, ErrSubmitUnsupported
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type grpcQueue struct {
	transport QueueTransportClient
	name      string
}

func (q *grpcQueue) Put(ctx context.Context, payload []byte) error {
	return q.transport.Put(ctx, q.name, payload)
}

func (q *grpcQueue) Get(ctx context.Context, timeout time.Duration) ([]byte, error) {
	return q.transport.Get(ctx, q.name, timeout)
}

type grpcVariable struct {
	transport QueueTransportClient
	name      string
}

func (v *grpcVariable) Get(ctx context.Context) ([]byte, error) {
	return v.transport.GetVariable(ctx, v.name)
}

func (v *grpcVariable) Set(ctx context.Context, payload []byte) error {
	return v.transport.SetVariable(ctx, v.name, payload)
}

var _ Client = (*GRPCClient)(nil)
