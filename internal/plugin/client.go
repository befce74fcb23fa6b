package plugin

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ultraviolet/uv/internal/beam"
	"github.com/ultraviolet/uv/internal/domain"
)

// Client is a native ABI connection to one loaded prism subprocess: a
// length-prefixed Beam frame stream over a Unix domain socket. Mirrors
// VsockClient's dial-once, guard-with-a-mutex shape (a broken connection is
// not redialed), generalized from vsock.VsockMessage framing to beam.Frame framing
// and from a single request/response cycle to a persistent duplex stream
// (a prism's wavefronts can produce many photons before its trap).
type Client struct {
	socketPath string
	mu         sync.Mutex
	conn       net.Conn
	writer     *beam.FrameWriter
	reader     *beam.FrameReader

	// invokeMu serializes Invoke calls: frames on this connection carry no
	// correlation-routing on the read side, so at most one wavefront may be
	// in flight on a Client at a time. The registry keeps one handle per
	// prism, so concurrent calls into the same prism wait for one another.
	invokeMu sync.Mutex
}

// NewClient creates a Client bound to a prism's Unix socket. Dial before
// first use.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Dial opens the underlying connection.
func (c *Client) Dial(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialLocked(ctx, timeout)
}

func (c *Client) dialLocked(ctx context.Context, timeout time.Duration) error {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial prism socket %s: %w", c.socketPath, err)
	}
	c.conn = conn
	c.writer = beam.NewFrameWriter(conn, beam.LengthPrefixed)
	c.reader = beam.NewFrameReader(conn, beam.LengthPrefixed)
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.writer = nil
	c.reader = nil
	return err
}

// Send writes one frame to the prism: a wavefront or cancel, or a photon or
// trap answering a refraction call.
func (c *Client) Send(f beam.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writer == nil {
		return fmt.Errorf("plugin client not connected")
	}
	return c.writer.WriteFrame(f)
}

// Recv blocks for the next frame the prism emits (a photon, a refract
// call, or the terminal trap).
func (c *Client) Recv() (beam.Frame, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return beam.Frame{}, fmt.Errorf("plugin client not connected")
	}
	return reader.ReadFrame()
}

// RefractionHandler serves one RefractionCall a prism issues mid-invocation.
// It runs the nested pulse and delivers its reflected photons through emit,
// returning the nested pulse's terminal trap (stamped with the call's own
// correlation id by the caller).
type RefractionHandler func(call domain.RefractionCall, emit func(domain.Photon)) domain.Trap

// cancelDrainGrace bounds how long Invoke waits, after sending a cancel, for
// the prism to actually stop emitting before it force-closes the connection
// to reclaim the reader goroutine. Mirrors Spawned.Stop's SIGTERM-then-
// SIGKILL grace window, generalized from killing a process to abandoning a
// connection.
const cancelDrainGrace = 2 * time.Second

// Invoke sends a wavefront and drains photons into onPhoton until the
// matching trap arrives, which it returns. A refract frame the prism sends
// mid-invocation is served by onRefract (nil rejects refraction calls as a
// protocol error) without blocking delivery of the top-level correlation's
// own photons. Closing the connection (or the prism crashing) surfaces as an
// io.EOF-wrapping error, which the Pulse Engine maps to domain.ErrPrismCrashed.
//
// Invoke never returns while its reader goroutine is still running: on
// ctx.Done it sends a cancel and waits up to cancelDrainGrace for the trap
// that should follow, force-closing the connection to unblock a prism that
// never replies. Only once the reader has actually exited does Invoke
// return, so a caller that tears down its photon sink the moment Invoke
// returns can never observe a late onPhoton call for this correlation, and
// the connection never has two goroutines reading it at once.
func (c *Client) Invoke(ctx context.Context, w domain.Wavefront, onPhoton func(domain.Photon), onRefract RefractionHandler) (domain.Trap, error) {
	c.invokeMu.Lock()
	defer c.invokeMu.Unlock()

	if err := c.Send(beam.WavefrontFrame(w)); err != nil {
		return domain.Trap{}, err
	}

	type result struct {
		trap domain.Trap
		err  error
	}
	done := make(chan result, 1)

	go func() {
		for {
			f, err := c.Recv()
			if err != nil {
				if err == io.EOF {
					err = fmt.Errorf("prism connection closed before trap: %w", err)
				}
				done <- result{err: err}
				return
			}
			switch f.Kind {
			case beam.KindPhoton:
				if onPhoton != nil && f.Photon != nil {
					onPhoton(*f.Photon)
				}
			case beam.KindTrap:
				if f.Trap != nil {
					done <- result{trap: *f.Trap}
					return
				}
			case beam.KindRefract:
				if f.RefractionCall != nil {
					go c.serveRefraction(*f.RefractionCall, onRefract)
				}
			}
		}
	}()

	select {
	case <-ctx.Done():
		_ = c.Send(beam.CancelFrame(domain.Cancel{CorrelationID: w.CorrelationID}))
		select {
		case <-done:
		case <-time.After(cancelDrainGrace):
			_ = c.Close()
			<-done
		}
		return domain.Trap{}, ctx.Err()
	case r := <-done:
		return r.trap, r.err
	}
}

// serveRefraction runs one refraction call's nested pulse and writes its
// photons and terminal trap back onto the same connection, stamped with the
// call's own correlation id. Runs on its own goroutine so a slow or parallel
// refraction never stalls delivery of the parent invocation's own frames.
func (c *Client) serveRefraction(call domain.RefractionCall, onRefract RefractionHandler) {
	if onRefract == nil {
		_ = c.Send(beam.TrapFrame(domain.NewErrorTrap(call.CorrelationID, domain.ErrRefractionFailed, "prism has no declared refractions")))
		return
	}
	trap := onRefract(call, func(p domain.Photon) {
		p.CorrelationID = call.CorrelationID
		_ = c.Send(beam.PhotonFrame(p))
	})
	trap.CorrelationID = call.CorrelationID
	_ = c.Send(beam.TrapFrame(trap))
}
