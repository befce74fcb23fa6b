package supervisor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ultraviolet/uv/internal/beam"
	"github.com/ultraviolet/uv/internal/config"
	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/transport"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.InstallDir = t.TempDir()
	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sup
}

func TestServeReturnsTrapForUnknownPrism(t *testing.T) {
	sup := newTestSupervisor(t)
	cliSide, runtimeSide := transport.NewLocalPair()
	sup.RegisterTransport(runtimeSide)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go sup.Serve(ctx, runtimeSide)

	if err := cliSide.Send(ctx, beam.WavefrontFrame(domain.Wavefront{
		CorrelationID: "c1",
		PrismID:       "demo:missing",
		Frequency:     "greet",
	})); err != nil {
		t.Fatalf("send: %v", err)
	}

	f, err := cliSide.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if f.Kind != beam.KindTrap {
		t.Fatalf("expected a trap frame, got %s", f.Kind)
	}
	if f.Trap.Error == nil || f.Trap.Error.Kind != domain.ErrPrismNotFound {
		t.Fatalf("expected PrismNotFound, got %+v", f.Trap.Error)
	}

	_ = cliSide.Close()
}

func TestServeReturnsAfterCancelWithNoInFlightCorrelation(t *testing.T) {
	sup := newTestSupervisor(t)
	cliSide, runtimeSide := transport.NewLocalPair()
	sup.RegisterTransport(runtimeSide)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	serveDone := make(chan error, 1)
	go func() { serveDone <- sup.Serve(ctx, runtimeSide) }()

	if err := cliSide.Send(ctx, beam.CancelFrame(domain.Cancel{CorrelationID: "never-started"})); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = cliSide.Close()
	select {
	case <-serveDone:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after transport close")
	}
}

func TestNewSkipsMalformedSpectrum(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InstallDir = dir

	prismDir := dir + "/prisms/demo/broken"
	if err := os.MkdirAll(prismDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(prismDir+"/spectrum.json", []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(prismDir+"/module", []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}

	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New should skip the malformed spectrum rather than fail: %v", err)
	}
	if len(sup.Registry.List()) != 0 {
		t.Fatalf("expected no discovered prisms, got %d", len(sup.Registry.List()))
	}
}
