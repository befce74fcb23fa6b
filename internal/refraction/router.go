// Package refraction implements the refraction router: resolving a prism's
// declared inter-prism calls, applying field-level transpose and reflection,
// starting the nested pulse, and preventing cycles across a chain of
// refractions.
package refraction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/logging"
	"github.com/ultraviolet/uv/internal/metrics"
	"github.com/ultraviolet/uv/internal/observability"
	"github.com/ultraviolet/uv/internal/registry"
)

// engine is the subset of *pulse.Engine the router needs, kept as an
// interface so a router can be tested without a live plugin connection.
type engine interface {
	Invoke(ctx context.Context, w domain.Wavefront, emit func(domain.Photon)) domain.Trap
}

// prismRegistry is the subset of *registry.Registry the router needs.
type prismRegistry interface {
	Resolve(id domain.PrismId) (*registry.Handle, bool)
}

// Router serves RefractionCalls issued by a running prism, matching
// pulse.RefractionHandler's signature via Handle.
type Router struct {
	registry prismRegistry
	engine   engine
}

// New creates a Router bound to reg and eng. eng is typically a
// *pulse.Engine; accepted as an interface so nested refraction calls can
// recurse through the same engine that started the outer Pulse.
func New(reg prismRegistry, eng engine) *Router {
	return &Router{registry: reg, engine: eng}
}

// Handle serves one refraction call: it resolves the declared refraction on
// the caller's spectrum, builds the callee's input by transpose, runs a
// nested pulse, and reflects its photons back to the caller. Matches
// pulse.RefractionHandler's signature.
func (r *Router) Handle(ctx context.Context, callerID domain.PrismId, callerInput any, call domain.RefractionCall, emit func(domain.Photon)) domain.Trap {
	ctx, ok := pushCaller(ctx, callerID)
	if !ok {
		return domain.NewErrorTrap(call.CorrelationID, domain.ErrRefractionCycle,
			fmt.Sprintf("refraction cycle: %s is already in flight", callerID))
	}

	callerHandle, known := r.registry.Resolve(callerID)
	if !known {
		return domain.NewErrorTrap(call.CorrelationID, domain.ErrPrismNotFound,
			fmt.Sprintf("caller prism %s not discovered", callerID))
	}
	refr, ok := callerHandle.Spectrum().Refraction(call.Name)
	if !ok {
		return domain.NewErrorTrap(call.CorrelationID, domain.ErrRefractionFailed,
			fmt.Sprintf("prism %s has no refraction %q", callerID, call.Name))
	}

	ctx, ok = push(ctx, refr.ResolvedTarget)
	if !ok {
		return domain.NewErrorTrap(call.CorrelationID, domain.ErrRefractionCycle,
			fmt.Sprintf("refraction cycle: %s is already in flight", refr.ResolvedTarget))
	}

	calleeInput, err := buildCalleeInput(refr.Transpose, callerInput)
	if err != nil {
		return domain.NewErrorTrap(call.CorrelationID, domain.ErrTransposeMissing, err.Error())
	}
	inputJSON, err := json.Marshal(calleeInput)
	if err != nil {
		return domain.NewErrorTrap(call.CorrelationID, domain.ErrInternal, err.Error())
	}

	tc := observability.ExtractTraceContext(ctx)
	nested := domain.Wavefront{
		CorrelationID: call.CorrelationID,
		PrismID:       refr.TargetPrismID,
		Frequency:     string(refr.TargetFreq),
		Input:         inputJSON,
		TraceID:       observability.GetTraceID(ctx),
		TraceParent:   tc.TraceParent,
		TraceState:    tc.TraceState,
	}

	reflect := func(p domain.Photon) {
		var calleeValue map[string]any
		if len(p.Value) > 0 {
			if err := json.Unmarshal(p.Value, &calleeValue); err != nil {
				logging.Op().Warn("refraction photon is not a JSON object, dropping",
					"refraction", call.Name, "target", refr.TargetPrismID)
				return
			}
		}
		reflected, ok := applyReflection(refr.Reflection, calleeValue)
		if !ok {
			logging.Op().Warn("refraction photon missing a required reflected field, dropping",
				"refraction", call.Name, "target", refr.TargetPrismID)
			return
		}
		value, err := json.Marshal(reflected)
		if err != nil {
			return
		}
		emit(domain.Photon{CorrelationID: call.CorrelationID, Sequence: p.Sequence, Value: value})
	}

	trap := r.engine.Invoke(ctx, nested, reflect)
	if trap.Status != domain.TrapOK {
		metrics.Global().RecordRefractionCall(refr.TargetPrismID, "failed")
		msg := "refraction target reported an error"
		var details json.RawMessage
		if trap.Error != nil {
			msg = trap.Error.Message
			details, _ = json.Marshal(trap.Error)
		}
		failed := domain.NewErrorTrap(call.CorrelationID, domain.ErrRefractionFailed, msg)
		failed.Error.Details = details
		return failed
	}
	metrics.Global().RecordRefractionCall(refr.TargetPrismID, "ok")
	return trap
}
