package rpc

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/trialmesh/trialmesh/internal/cluster"
)

// Coordinator implements QueueTransportServer on top of an in-process
// cluster.LocalClient, giving every dialed-in worker process a shared view
// of the same named queues and variables. It is the server side a
// cluster-coordinator binary runs; trial processes never run it
// themselves, only dial in via NewQueueTransportClient.
type Coordinator struct {
	local *cluster.LocalClient
}

// NewCoordinator builds a Coordinator with a fresh, empty backing store.
func NewCoordinator() *Coordinator {
	return &Coordinator{local: cluster.NewLocalClient()}
}

// Client returns the Coordinator's backing cluster.Client, letting a
// process that hosts the Coordinator also submit work against the same
// queues and variables it serves to remote dialers, an in-process
// worker competing with real remote ones for the same trials.
func (c *Coordinator) Client() cluster.Client {
	return c.local
}

func (c *Coordinator) Put(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	queue, err := metadataValue(ctx, metaQueueName)
	if err != nil {
		return nil, err
	}
	if err := c.local.Queue(queue).Put(ctx, req.GetValue()); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (c *Coordinator) Get(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	queue, err := metadataValue(ctx, metaQueueName)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(0)
	if ms, err := metadataValue(ctx, metaTimeoutMs); err == nil {
		if d, parseErr := time.ParseDuration(ms + "ms"); parseErr == nil {
			timeout = d
		}
	}
	payload, err := c.local.Queue(queue).Get(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(payload), nil
}

func (c *Coordinator) SetVariable(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	name, err := metadataValue(ctx, metaVariableName)
	if err != nil {
		return nil, err
	}
	if err := c.local.Variable(name).Set(ctx, req.GetValue()); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (c *Coordinator) GetVariable(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	name, err := metadataValue(ctx, metaVariableName)
	if err != nil {
		return nil, err
	}
	payload, err := c.local.Variable(name).Get(ctx)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(payload), nil
}

var _ QueueTransportServer = (*Coordinator)(nil)
