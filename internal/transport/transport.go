// Package transport implements the Transport Adapter: the boundary between
// an external caller and the Beam frame stream the Pulse Engine consumes.
// Three adapters exist, matching the three surfaces a caller can reach the
// runtime through: an in-process channel for the CLI, a WebSocket for a
// long-lived client, and a per-invocation Lambda event for API Gateway.
package transport

import (
	"context"

	"github.com/ultraviolet/uv/internal/beam"
)

// Transport is a bidirectional Beam frame channel. Connection identity is
// the adapter's own concern (logs, metrics labels); it is never part of
// correlation, since every frame already carries its own correlation id.
type Transport interface {
	Recv(ctx context.Context) (beam.Frame, error)
	Send(ctx context.Context, f beam.Frame) error
	Close() error
}
