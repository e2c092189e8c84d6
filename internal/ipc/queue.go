package ipc

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"
	"time"

	"github.com/trialmesh/trialmesh/internal/cluster"
	"github.com/trialmesh/trialmesh/internal/messages"
)

// RetryPolicy retries a Get against the underlying queue with exponential
// backoff instead of a single fixed wait, for transports where a worker may
// need to reconnect or the queue may take a variable amount of time to
// surface a payload.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (r RetryPolicy) delay(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// QueueConnection adapts a cluster.Queue into a Connection, gob-encoding
// and decoding messages.Message values on the wire. The queue itself is
// resolved lazily, client.Queue(name) is only called once, on first use,
// so building a QueueConnection never blocks on cluster availability.
type QueueConnection struct {
	client cluster.Client
	name   string

	timeout time.Duration
	retry   *RetryPolicy

	once  sync.Once
	queue cluster.Queue
}

// QueueOption configures a QueueConnection's wait policy. Exactly one of
// WithTimeout or WithRetryPolicy may be used, supplying both is rejected
// by NewQueueConnection with ErrAmbiguousWaitPolicy.
type QueueOption func(*QueueConnection)

// WithTimeout makes Get wait up to d for a single Queue.Get call.
func WithTimeout(d time.Duration) QueueOption {
	return func(c *QueueConnection) { c.timeout = d }
}

// WithRetryPolicy makes Get retry the underlying Queue.Get with
// exponentially increasing backoff, up to p.MaxAttempts times.
func WithRetryPolicy(p RetryPolicy) QueueOption {
	return func(c *QueueConnection) { c.retry = &p }
}

// NewQueueConnection builds a Connection over the named queue on client.
func NewQueueConnection(client cluster.Client, name string, opts ...QueueOption) (*QueueConnection, error) {
	c := &QueueConnection{client: client, name: name}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 && c.retry != nil {
		return nil, ErrAmbiguousWaitPolicy
	}
	return c, nil
}

func (c *QueueConnection) resolve() cluster.Queue {
	c.once.Do(func() { c.queue = c.client.Queue(c.name) })
	return c.queue
}

func (c *QueueConnection) Get(ctx context.Context) (messages.Message, error) {
	queue := c.resolve()

	if c.retry != nil {
		var lastErr error
		for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
			// Each attempt's wait window IS the backoff delay: a miss
			// means the attempt timed out after waiting progressively
			// longer, and the loop immediately tries again.
			payload, err := queue.Get(ctx, c.retry.delay(attempt))
			if err == nil {
				return decode(payload)
			}
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		return nil, lastErr
	}

	payload, err := queue.Get(ctx, c.timeout)
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

func (c *QueueConnection) Put(msg messages.Message) error {
	payload, err := encode(msg)
	if err != nil {
		return err
	}
	return c.resolve().Put(context.Background(), payload)
}

func (c *QueueConnection) Close() error { return nil }

// envelope carries a Message through a field statically typed as the
// messages.Message interface, which is what makes gob write the concrete
// type's registered name onto the wire, encoding the interface value
// directly at the top level would lose that tag, since reflection erases
// staticness as soon as a bare interface{} is passed to Encode.
type envelope struct {
	Msg messages.Message
}

func encode(msg messages.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Msg: msg}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(payload []byte) (messages.Message, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return nil, err
	}
	return env.Msg, nil
}
