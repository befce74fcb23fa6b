package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ultraviolet/uv/internal/beam"
	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/supervisor"
	"github.com/ultraviolet/uv/internal/transport"
)

// runInvoke performs a one-shot local invoke: a fresh Supervisor is built
// from the install directory, a local transport pair connects it to this
// process, a single wavefront is sent, and every photon plus the final trap
// is printed as it arrives.
func runInvoke(ctx context.Context, prismRef, frequency, payload string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sup, err := supervisor.New(cfg)
	if err != nil {
		return fmt.Errorf("build supervisor: %w", err)
	}

	cliSide, runtimeSide := transport.NewLocalPair()
	sup.RegisterTransport(runtimeSide)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- sup.Serve(ctx, runtimeSide) }()

	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("invalid JSON payload: %s", payload)
	}

	w := domain.Wavefront{
		CorrelationID: uuid.NewString(),
		PrismID:       prismRef,
		Frequency:     frequency,
		Input:         json.RawMessage(payload),
	}
	if err := cliSide.Send(ctx, beam.WavefrontFrame(w)); err != nil {
		return fmt.Errorf("send wavefront: %w", err)
	}

	var trap *domain.Trap
	for trap == nil {
		f, err := cliSide.Recv(ctx)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		switch f.Kind {
		case beam.KindPhoton:
			fmt.Fprintf(os.Stdout, "%s\n", string(f.Photon.Value))
		case beam.KindTrap:
			t := *f.Trap
			trap = &t
		}
	}

	_ = cliSide.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.DrainDeadline())
	defer cancel()
	_ = sup.Shutdown(shutdownCtx)
	<-serveErrCh

	if trap.Status != domain.TrapOK {
		printErr("error: %s: %s", trap.Error.Kind, trap.Error.Message)
		return domain.NewError(trap.Error.Kind, trap.Error.Message)
	}
	printOK("ok")
	return nil
}
