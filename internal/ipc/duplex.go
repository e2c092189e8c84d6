package ipc

import (
	"context"

	"github.com/trialmesh/trialmesh/internal/messages"
)

// DuplexQueueConnection pairs two independently-named QueueConnections
// (one for outbound traffic, one for inbound) into a single Connection.
// The distributed backend needs this because a trial's requests
// (Suggest, Report, ...) and the study's replies travel on different
// named queues: every trial shares one public queue for requests, but
// each has its own private queue for replies, so two trials' traffic
// never crosses.
type DuplexQueueConnection struct {
	put *QueueConnection
	get *QueueConnection
}

// NewDuplexQueueConnection builds a Connection that writes through put
// and reads through get.
func NewDuplexQueueConnection(put, get *QueueConnection) *DuplexQueueConnection {
	return &DuplexQueueConnection{put: put, get: get}
}

func (d *DuplexQueueConnection) Put(msg messages.Message) error { return d.put.Put(msg) }

func (d *DuplexQueueConnection) Get(ctx context.Context) (messages.Message, error) {
	return d.get.Get(ctx)
}

func (d *DuplexQueueConnection) Close() error {
	putErr := d.put.Close()
	getErr := d.get.Close()
	if putErr != nil {
		return putErr
	}
	return getErr
}

var _ Connection = (*DuplexQueueConnection)(nil)
