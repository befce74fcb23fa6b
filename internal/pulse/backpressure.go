package pulse

import (
	"context"

	"github.com/ultraviolet/uv/internal/domain"
)

// emitQueue is the bounded per-correlation photon queue the engine writes
// into and a single drain goroutine reads from. A slow transport fills the
// queue; once full, push blocks the prism's emit until the drain goroutine
// catches up (or the Pulse's context ends), so a slow client throttles its
// producer instead of growing memory without bound.
type emitQueue struct {
	ch   chan domain.Photon
	done chan struct{}
}

// defaultEmitQueueCapacity matches the bounded-queue default of 64.
const defaultEmitQueueCapacity = 64

// newEmitQueue starts the drain goroutine, forwarding every queued photon to
// downstream in order until close is called.
func newEmitQueue(capacity int, downstream func(domain.Photon)) *emitQueue {
	if capacity <= 0 {
		capacity = defaultEmitQueueCapacity
	}
	q := &emitQueue{
		ch:   make(chan domain.Photon, capacity),
		done: make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for p := range q.ch {
			downstream(p)
		}
	}()
	return q
}

// push enqueues a photon, blocking while the queue is full. Returns ctx.Err()
// if ctx ends before there is room.
func (q *emitQueue) push(ctx context.Context, p domain.Photon) error {
	select {
	case q.ch <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting new photons and waits for the drain goroutine to
// finish delivering everything already queued.
func (q *emitQueue) close() {
	close(q.ch)
	<-q.done
}
