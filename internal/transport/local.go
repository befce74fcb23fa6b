package transport

import (
	"context"
	"errors"

	"github.com/ultraviolet/uv/internal/beam"
)

// ErrClosed is returned by Send/Recv once the transport has been closed.
var ErrClosed = errors.New("local transport closed")

// Local is an in-process Transport backed by a pair of channels. It is what
// `uv`'s one-shot CLI invoke uses to talk to the Supervisor in the same
// process: no socket, no framing, just two goroutines handing frame values
// to each other.
type Local struct {
	out    chan beam.Frame
	in     chan beam.Frame
	closed chan struct{}
}

// NewLocalPair returns two ends of one in-process channel pair; a frame sent
// on one end is received on the other.
func NewLocalPair() (a, b *Local) {
	ab := make(chan beam.Frame, 8)
	ba := make(chan beam.Frame, 8)
	closed := make(chan struct{})
	return &Local{out: ab, in: ba, closed: closed}, &Local{out: ba, in: ab, closed: closed}
}

// Send delivers f to the other end of the pair.
func (l *Local) Send(ctx context.Context, f beam.Frame) error {
	select {
	case l.out <- f:
		return nil
	case <-l.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks for the next frame sent from the other end of the pair.
func (l *Local) Recv(ctx context.Context) (beam.Frame, error) {
	select {
	case f := <-l.in:
		return f, nil
	case <-l.closed:
		return beam.Frame{}, ErrClosed
	case <-ctx.Done():
		return beam.Frame{}, ctx.Err()
	}
}

// Close tears down both ends of the pair; either end may call it.
func (l *Local) Close() error {
	select {
	case <-l.closed:
	default:
		close(l.closed)
	}
	return nil
}
