package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ultraviolet/uv/internal/beam"
)

// wsWriteTimeout bounds how long a single outbound frame write may block.
const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocket adapts one client socket to a Transport: one JSON-encoded frame
// per WebSocket message. writeMu serializes Send/Close against gorilla's own
// single-writer requirement, the same discipline a dedicated writer
// goroutine enforces, collapsed here into a mutex since every Send already
// runs on whichever goroutine is driving that correlation's frames.
type WebSocket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Upgrade promotes an HTTP request to a WebSocket connection and wraps it as
// a Transport. Connection identity (remote addr) belongs to the caller's own
// logging, not to this type.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetCloseHandler(func(int, string) error { return nil })
	return &WebSocket{conn: conn}, nil
}

// Recv reads the next WebSocket message and decodes it as one Beam frame.
func (w *WebSocket) Recv(ctx context.Context) (beam.Frame, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return beam.Frame{}, err
	}
	var f beam.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return beam.Frame{}, fmt.Errorf("websocket transport: malformed frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return beam.Frame{}, fmt.Errorf("websocket transport: %w", err)
	}
	return f, nil
}

// Send encodes f as JSON and writes it as one WebSocket text message.
func (w *WebSocket) Send(ctx context.Context, f beam.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a best-effort close frame, then closes the underlying socket.
func (w *WebSocket) Close() error {
	deadline := time.Now().Add(wsWriteTimeout)
	w.writeMu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	w.writeMu.Unlock()
	return w.conn.Close()
}
