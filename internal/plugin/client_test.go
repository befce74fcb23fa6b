package plugin

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ultraviolet/uv/internal/beam"
	"github.com/ultraviolet/uv/internal/domain"
)

// fakePrism accepts one connection and echoes a fixed photon/trap sequence
// for any wavefront it receives, standing in for a real prism subprocess.
func fakePrism(t *testing.T, socketPath string) net.Listener {
	t.Helper()
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := beam.NewFrameReader(conn, beam.LengthPrefixed)
		w := beam.NewFrameWriter(conn, beam.LengthPrefixed)

		f, err := r.ReadFrame()
		if err != nil || f.Kind != beam.KindWavefront {
			return
		}

		_ = w.WriteFrame(beam.PhotonFrame(domain.Photon{
			CorrelationID: f.Wavefront.CorrelationID,
			Sequence:      0,
			Value:         json.RawMessage(`{"line":"hello"}`),
		}))
		_ = w.WriteFrame(beam.TrapFrame(domain.NewOKTrap(f.Wavefront.CorrelationID)))
	}()
	return ln
}

func TestClientInvokeReceivesPhotonsThenTrap(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "prism.sock")
	ln := fakePrism(t, socketPath)
	defer ln.Close()

	c := NewClient(socketPath)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Dial(ctx, time.Second); err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var photons []domain.Photon
	trap, err := c.Invoke(ctx, domain.Wavefront{
		CorrelationID: "abc",
		PrismID:       "demo:greeter",
		Frequency:     "greet",
		Input:         json.RawMessage(`{"who":"world"}`),
	}, func(p domain.Photon) { photons = append(photons, p) }, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(photons) != 1 {
		t.Fatalf("expected 1 photon, got %d", len(photons))
	}
	if trap.Status != domain.TrapOK {
		t.Fatalf("expected ok trap, got %+v", trap)
	}
}
