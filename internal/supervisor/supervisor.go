// Package supervisor owns the registry, the Pulse Engine, the refraction
// router, and every registered transport for one running instance of the
// runtime: it scans the install directory at start, serves wavefronts for
// as long as it is asked to, and drains in-flight pulses on stop.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ultraviolet/uv/internal/beam"
	"github.com/ultraviolet/uv/internal/config"
	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/logging"
	"github.com/ultraviolet/uv/internal/pulse"
	"github.com/ultraviolet/uv/internal/refraction"
	"github.com/ultraviolet/uv/internal/registry"
	"github.com/ultraviolet/uv/internal/transport"
)

// Supervisor is the runtime's top-level owner: registry, engine, router,
// and transports, plus the stop signal every one of them drains against.
type Supervisor struct {
	cfg      *config.Config
	Registry *registry.Registry
	Engine   *pulse.Engine
	Router   *refraction.Router

	mu         sync.Mutex
	transports []transport.Transport
	wg         sync.WaitGroup
}

// New builds a Supervisor from cfg: scans cfg.InstallDir for declared
// prisms, registers them with the registry, and wires the Pulse Engine to
// the refraction router. Crash of a single invocation never tears this
// down; only Shutdown does.
func New(cfg *config.Config) (*Supervisor, error) {
	reg := registry.New(registry.Options{
		WorkDir:      os.TempDir(),
		ReadyTimeout: cfg.Registry.ReadyTimeout,
		MaxLoaded:    cfg.Registry.MaxLoadedHandles,
		Breaker:      cfg.Breaker(),
	})

	found, err := scanInstallDir(cfg.InstallDir)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	for _, p := range found {
		spec, err := loadSpectrum(p.spectrumPath)
		if err != nil {
			logging.Op().Warn("skipping malformed spectrum", "path", p.spectrumPath, "error", err)
			continue
		}
		if _, exists := reg.Resolve(spec.ID()); exists {
			logging.Op().Warn("skipping duplicate prism", "prism", spec.ID().String(), "path", p.spectrumPath)
			continue
		}
		reg.Discover(spec, p.command, p.env)
	}

	engine := pulse.New(reg, pulse.Options{
		DefaultDeadline:   cfg.DefaultDeadline(),
		EmitQueueCapacity: cfg.EmitQueueCapacity,
	})
	router := refraction.New(reg, engine)
	engine.SetRefractHandler(router.Handle)

	return &Supervisor{cfg: cfg, Registry: reg, Engine: engine, Router: router}, nil
}

// RegisterTransport adds t to the set of transports the Supervisor drives.
// Serve must be called (typically on its own goroutine) to pump frames from
// t into the Engine.
func (s *Supervisor) RegisterTransport(t transport.Transport) {
	s.mu.Lock()
	s.transports = append(s.transports, t)
	s.mu.Unlock()
}

// Serve pumps frames from t into the Engine until t.Recv returns an error
// (including context cancellation) or the Supervisor is shutting down.
// A transport connection may carry several wavefronts over its lifetime,
// and a cancel for one must reach its Pulse while a later wavefront is
// already being read, so each wavefront's Invoke runs on its own goroutine;
// Serve's read loop stays free to deliver a matching cancel frame the
// moment it arrives. Per-connection in-flight correlations are tracked in
// inflight so a cancel can find the right context.CancelFunc.
func (s *Supervisor) Serve(ctx context.Context, t transport.Transport) error {
	s.wg.Add(1)
	defer s.wg.Done()

	var mu sync.Mutex
	inflight := make(map[string]context.CancelFunc)
	var pending sync.WaitGroup
	defer pending.Wait()

	for {
		f, err := t.Recv(ctx)
		if err != nil {
			return err
		}
		switch f.Kind {
		case beam.KindWavefront:
			w := *f.Wavefront
			wctx, cancel := context.WithCancel(ctx)
			mu.Lock()
			inflight[w.CorrelationID] = cancel
			mu.Unlock()
			pending.Add(1)
			go func() {
				defer pending.Done()
				defer cancel()
				s.serveWavefront(wctx, t, w)
				mu.Lock()
				delete(inflight, w.CorrelationID)
				mu.Unlock()
			}()
		case beam.KindCancel:
			mu.Lock()
			cancel, ok := inflight[f.Cancel.CorrelationID]
			mu.Unlock()
			if ok {
				cancel()
			} else {
				logging.Op().Warn("received cancel with no matching in-flight correlation",
					"correlation_id", f.Cancel.CorrelationID)
			}
		default:
			logging.Op().Warn("transport received unexpected frame kind", "kind", f.Kind)
		}
	}
}

func (s *Supervisor) serveWavefront(ctx context.Context, t transport.Transport, w domain.Wavefront) {
	emit := func(p domain.Photon) {
		_ = t.Send(ctx, beam.PhotonFrame(p))
	}
	trap := s.Engine.Invoke(ctx, w, emit)
	_ = t.Send(ctx, beam.TrapFrame(trap))
}

// Shutdown stops accepting new work, waits for transports' Serve loops and
// every in-flight Pulse to finish (bounded by ctx), and tears down the
// registry's loaded handles.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	transports := s.transports
	s.mu.Unlock()
	for _, t := range transports {
		_ = t.Close()
	}

	served := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(served)
	}()
	select {
	case <-served:
	case <-ctx.Done():
		return fmt.Errorf("supervisor: transport drain: %w", ctx.Err())
	}

	if err := s.Engine.Shutdown(ctx); err != nil {
		return fmt.Errorf("supervisor: engine drain: %w", err)
	}
	if err := s.Registry.Shutdown(ctx); err != nil {
		return fmt.Errorf("supervisor: registry drain: %w", err)
	}
	return nil
}
