package pulse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/logging"
	"github.com/ultraviolet/uv/internal/metrics"
	"github.com/ultraviolet/uv/internal/observability"
	"github.com/ultraviolet/uv/internal/plugin"
	"github.com/ultraviolet/uv/internal/registry"
	"github.com/ultraviolet/uv/internal/schema"
)

// RefractionHandler serves a refraction call issued by the prism currently
// running under a Pulse. callerID and callerInput identify that Pulse so the
// handler (the refraction router) can apply transpose against its input;
// emit delivers the nested pulse's reflected photons back to the caller.
type RefractionHandler func(ctx context.Context, callerID domain.PrismId, callerInput any, call domain.RefractionCall, emit func(domain.Photon)) domain.Trap

// Options configures an Engine.
type Options struct {
	// DefaultDeadline is used when a wavefront carries no deadline_ms.
	DefaultDeadline time.Duration
	// EmitQueueCapacity bounds the per-correlation photon queue. Zero uses
	// defaultEmitQueueCapacity.
	EmitQueueCapacity int
	// SchemaCacheSize bounds the compiled-schema cache. Zero uses the
	// package default.
	SchemaCacheSize int
	// Refract serves refraction calls issued by a running prism. Nil means
	// refraction calls are rejected as a protocol error, which is enough
	// for a single-prism deployment or a test harness.
	Refract RefractionHandler
}

// Engine is the Pulse Engine: it turns one accepted Wavefront into exactly
// one terminal Trap, validating input and output against the target
// wavelength's schemas and multiplexing photons through a bounded queue.
//
// Safe for concurrent use across any number of correlations. inflight is
// drained by Shutdown the same way executor.Executor drains in-flight
// invocations before a graceful stop.
type Engine struct {
	registry *registry.Registry
	schemas  *schema.Cache
	logger   *logging.Logger

	defaultDeadline   time.Duration
	emitQueueCapacity int
	refract           RefractionHandler

	inflight     sync.WaitGroup
	closing      atomic.Bool
	activePulses atomic.Int64
}

// SetRefractHandler binds the refraction handler after construction, for
// callers that must build the Engine before the Router that serves its
// refraction calls (the Router itself takes an Engine reference).
func (e *Engine) SetRefractHandler(h RefractionHandler) {
	e.refract = h
}

// New creates an Engine bound to reg.
func New(reg *registry.Registry, opts Options) *Engine {
	if opts.DefaultDeadline <= 0 {
		opts.DefaultDeadline = 60 * time.Second
	}
	if opts.EmitQueueCapacity <= 0 {
		opts.EmitQueueCapacity = defaultEmitQueueCapacity
	}
	return &Engine{
		registry:          reg,
		schemas:           schema.NewCache(opts.SchemaCacheSize),
		logger:            logging.Default(),
		defaultDeadline:   opts.DefaultDeadline,
		emitQueueCapacity: opts.EmitQueueCapacity,
		refract:           opts.Refract,
	}
}

// Shutdown marks the engine closing (new Invoke calls are rejected) and
// waits for in-flight pulses to finish, or ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.closing.Store(true)
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invoke runs one wavefront to completion, emitting photons via emit as they
// arrive and returning the single terminal trap. emit may be nil for
// fire-and-forget callers that only care about the trap.
func (e *Engine) Invoke(ctx context.Context, w domain.Wavefront, emit func(domain.Photon)) domain.Trap {
	if e.closing.Load() {
		return domain.NewErrorTrap(w.CorrelationID, domain.ErrInternal, "engine is shutting down")
	}

	e.inflight.Add(1)
	defer e.inflight.Done()

	start := time.Now()
	active := e.activePulses.Add(1)
	metrics.SetActivePulses(int(active))
	defer func() {
		metrics.SetActivePulses(int(e.activePulses.Add(-1)))
	}()

	prismID, err := domain.ParsePrismId(w.PrismID)
	if err != nil {
		return domain.NewErrorTrap(w.CorrelationID, domain.ErrPrismNotFound, err.Error())
	}

	// A wavefront arriving as the target of a refraction call carries the
	// caller's trace context; extracting it before starting the span makes
	// this hop a child of that trace instead of the root of a new one, so a
	// multi-hop refraction chain shows up as one trace.
	if w.TraceParent != "" {
		ctx = observability.InjectTraceContext(ctx, observability.TraceContext{
			TraceParent: w.TraceParent,
			TraceState:  w.TraceState,
		})
	}

	ctx, span := observability.StartSpan(ctx, "pulse.invoke",
		observability.AttrPrismID.String(w.PrismID),
		observability.AttrFrequency.String(w.Frequency),
		observability.AttrCorrelationID.String(w.CorrelationID),
	)
	defer span.End()

	if w.TraceID == "" {
		w.TraceID = observability.GetTraceID(ctx)
	}

	deadline := e.defaultDeadline
	if w.DeadlineMs > 0 {
		deadline = time.Duration(w.DeadlineMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	existing, known := e.registry.Resolve(prismID)
	wasReady := known && existing.State() == domain.HandleReady

	h, err := e.registry.Load(ctx, prismID)
	if err != nil {
		observability.SetSpanError(span, err)
		trap := errorTrap(w.CorrelationID, err)
		e.finish(w, start, false, !wasReady, 0, trap)
		return trap
	}
	defer e.registry.Release(h)

	wavelength, ok := h.Spectrum().Wavelength(domain.Frequency(w.Frequency))
	if !ok {
		uverr := domain.NewError(domain.ErrFrequencyNotFound,
			fmt.Sprintf("prism %s has no frequency %q", w.PrismID, w.Frequency))
		observability.SetSpanError(span, uverr)
		trap := domain.NewErrorTrap(w.CorrelationID, uverr.Kind, uverr.Message)
		e.finish(w, start, false, !wasReady, 0, trap)
		return trap
	}

	inSchema, err := e.schemas.CompileCached(wavelength.InputSchema)
	if err != nil {
		trap := domain.NewErrorTrap(w.CorrelationID, domain.ErrInternal, err.Error())
		e.finish(w, start, false, !wasReady, 0, trap)
		return trap
	}
	outSchema, err := e.schemas.CompileCached(wavelength.OutputSchema)
	if err != nil {
		trap := domain.NewErrorTrap(w.CorrelationID, domain.ErrInternal, err.Error())
		e.finish(w, start, false, !wasReady, 0, trap)
		return trap
	}

	var input any
	if len(w.Input) > 0 {
		if err := json.Unmarshal(w.Input, &input); err != nil {
			trap := domain.NewErrorTrap(w.CorrelationID, domain.ErrValidationFailed, "invalid JSON input: "+err.Error())
			e.finish(w, start, false, !wasReady, 0, trap)
			return trap
		}
	}
	if verrs := inSchema.Validate(input, schema.ModeInput); len(verrs) > 0 {
		trap := domain.NewErrorTrap(w.CorrelationID, domain.ErrValidationFailed, validationSummary(verrs))
		trap.Error.Details, _ = json.Marshal(verrs)
		e.finish(w, start, false, !wasReady, 0, trap)
		return trap
	}
	input = inSchema.FillDefaults(input)
	filledInput, err := json.Marshal(input)
	if err != nil {
		trap := domain.NewErrorTrap(w.CorrelationID, domain.ErrInternal, err.Error())
		e.finish(w, start, false, !wasReady, 0, trap)
		return trap
	}
	wf := w
	wf.Input = filledInput

	p := newPulse(w.CorrelationID, prismID, wavelength, outSchema)
	p.setState(domain.PulseValidating)
	p.setState(domain.PulseRunning)

	photonCount := 0
	queue := newEmitQueue(e.emitQueueCapacity, func(photon domain.Photon) {
		if emit != nil {
			emit(photon)
		}
		metrics.Global().RecordPhotonEmitted(w.PrismID, w.Frequency)
	})

	onPhoton := func(raw domain.Photon) {
		if p.Cancelled() {
			return
		}
		var value any
		if len(raw.Value) > 0 {
			_ = json.Unmarshal(raw.Value, &value)
		}
		seq, verrs, err := p.acceptEmit(value)
		if err != nil {
			logging.Op().Warn("dropping extra emit past single-emit limit",
				"correlation_id", w.CorrelationID, "prism", w.PrismID, "frequency", w.Frequency)
			return
		}
		if len(verrs) > 0 {
			logging.Op().Warn("photon failed output validation",
				"correlation_id", w.CorrelationID, "errors", fmt.Sprint(verrs))
		}
		photonCount++
		raw.Sequence = seq
		if err := queue.push(ctx, raw); err != nil {
			logging.Op().Warn("dropping photon: emit queue closed", "correlation_id", w.CorrelationID)
		}
	}

	var onRefract plugin.RefractionHandler
	if e.refract != nil {
		onRefract = func(call domain.RefractionCall, emit func(domain.Photon)) domain.Trap {
			return e.refract(ctx, prismID, input, call, emit)
		}
	}

	client := h.Client()
	var trap domain.Trap
	if client == nil {
		err = fmt.Errorf("prism handle for %s is not ready", w.PrismID)
	} else {
		trap, err = client.Invoke(ctx, wf, onPhoton, onRefract)
	}
	queue.close()

	success := err == nil && trap.Status == domain.TrapOK
	if err != nil {
		p.setState(domain.PulseFailed)
		kind := domain.ErrPrismCrashed
		switch ctx.Err() {
		case context.DeadlineExceeded:
			kind = domain.ErrDeadlineExceeded
		case context.Canceled:
			kind = domain.ErrCancelled
		}
		observability.SetSpanError(span, err)
		trap = domain.NewErrorTrap(w.CorrelationID, kind, err.Error())
	} else if trap.Status != domain.TrapOK {
		p.setState(domain.PulseFailed)
		msg := "prism reported an error trap"
		if trap.Error != nil {
			msg = trap.Error.Message
		}
		observability.SetSpanError(span, fmt.Errorf("%s", msg))
	} else {
		observability.SetSpanOK(span)
	}
	p.setState(domain.PulseClosing)
	p.markTrapSent()
	p.setState(domain.PulseClosed)

	e.finish(w, start, success, !wasReady, photonCount, trap)
	return trap
}

// finish records the async side-effects common to every invocation path:
// metrics, the per-pulse structured log, and Prometheus labels. Mirrors
// executor.Executor's fire-and-forget side-effect block at the tail of
// Invoke.
func (e *Engine) finish(w domain.Wavefront, start time.Time, success, coldLoad bool, photonCount int, trap domain.Trap) {
	durationMs := time.Since(start).Milliseconds()
	metrics.Global().RecordPulseWithDetails(w.PrismID, w.Frequency, "", durationMs, coldLoad, success)

	entry := &logging.PulseLog{
		CorrelationID: w.CorrelationID,
		TraceID:       w.TraceID,
		PrismID:       w.PrismID,
		Frequency:     w.Frequency,
		DurationMs:    durationMs,
		ColdStart:     coldLoad,
		Success:       success,
		InputSize:     len(w.Input),
		PhotonCount:   photonCount,
	}
	if trap.Error != nil {
		entry.ErrorKind = string(trap.Error.Kind)
		entry.Error = trap.Error.Message
	}
	e.logger.Log(entry)
}

// errorTrap converts a registry/domain error into a terminal trap,
// preserving its ErrorKind when it carries one.
func errorTrap(correlationID string, err error) domain.Trap {
	if uverr, ok := err.(*domain.UVError); ok {
		return domain.NewErrorTrap(correlationID, uverr.Kind, uverr.Message)
	}
	return domain.NewErrorTrap(correlationID, domain.ErrPrismLoadFailed, err.Error())
}

func validationSummary(errs []schema.Error) string {
	if len(errs) == 1 {
		return errs[0].String()
	}
	return fmt.Sprintf("%d validation errors, first: %s", len(errs), errs[0].String())
}
