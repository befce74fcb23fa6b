package transport

import (
	"context"
	"testing"
	"time"

	"github.com/ultraviolet/uv/internal/beam"
	"github.com/ultraviolet/uv/internal/domain"
)

func TestLocalPairDeliversFrameToOtherEnd(t *testing.T) {
	a, b := NewLocalPair()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := beam.WavefrontFrame(domain.Wavefront{CorrelationID: "c1", PrismID: "demo:greeter", Frequency: "greet"})
	if err := a.Send(ctx, want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got.CorrelationID() != want.CorrelationID() {
		t.Fatalf("expected correlation id %q, got %q", want.CorrelationID(), got.CorrelationID())
	}
}

func TestLocalPairRecvAfterCloseReturnsErrClosed(t *testing.T) {
	a, b := NewLocalPair()
	_ = a.Close()

	ctx := context.Background()
	if _, err := b.Recv(ctx); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLocalPairSendRespectsContextCancellation(t *testing.T) {
	a, _ := NewLocalPair()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the buffered channel so the next send would block, then rely on
	// the already-cancelled context to return immediately.
	for i := 0; i < 8; i++ {
		_ = a.Send(context.Background(), beam.CancelFrame(domain.Cancel{CorrelationID: "x"}))
	}
	if err := a.Send(ctx, beam.CancelFrame(domain.Cancel{CorrelationID: "y"})); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
