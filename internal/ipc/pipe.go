package ipc

import (
	"context"
	"sync"

	"github.com/trialmesh/trialmesh/internal/messages"
)

// Pipe is a duplex, in-process Connection used by the local backend, two
// goroutines (the event loop and a trial's worker goroutine) exchanging
// messages.Message values directly, with no serialization. It plays the
// role the teacher's os.Pipe-backed duplex stream plays for a subprocess
// worker, but over a Go channel instead of a file descriptor, since the
// local backend here is a goroutine pool rather than child processes.
//
// NewPipePair returns the two ends already wired together: writes on one
// end arrive as reads on the other.
type Pipe struct {
	out chan<- messages.Message
	in  <-chan messages.Message

	closeOnce sync.Once
	closeSig  chan struct{}
	peerSig   <-chan struct{}
}

// NewPipePair builds two Pipe ends, a and b, such that a.Put delivers to
// b.Get and vice versa. The channel is unbuffered so Put does not return
// until the event loop is ready to receive, matching the synchronous
// request/response rhythm of the protocol (a trial never issues a second
// request before the first is answered).
func NewPipePair() (a, b *Pipe) {
	ab := make(chan messages.Message)
	ba := make(chan messages.Message)
	a = &Pipe{out: ab, in: ba, closeSig: make(chan struct{})}
	b = &Pipe{out: ba, in: ab, closeSig: make(chan struct{}), peerSig: a.closeSig}
	a.peerSig = b.closeSig
	return a, b
}

func (p *Pipe) Get(ctx context.Context) (messages.Message, error) {
	select {
	case msg, ok := <-p.in:
		if !ok {
			return nil, ErrStreamClosed
		}
		return msg, nil
	case <-p.closeSig:
		return nil, ErrStreamClosed
	case <-p.peerSig:
		return nil, ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipe) Put(msg messages.Message) error {
	select {
	case p.out <- msg:
		return nil
	case <-p.closeSig:
		return ErrStreamClosed
	case <-p.peerSig:
		return ErrStreamClosed
	}
}

// Close marks this end closed. It does not close the underlying channel,
// the channel is shared with the peer end and closing it from one side
// while the other still writes would panic. A peer blocked in Get or Put
// sees this end's closeSig instead.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.closeSig) })
	return nil
}
