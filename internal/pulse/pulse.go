// Package pulse implements the Pulse Engine: the per-wavefront execution
// scope that validates input, drives the loaded prism through the native
// ABI, multiplexes photons back to the caller under backpressure, and
// guarantees exactly one terminal trap per correlation.
package pulse

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/schema"
)

// Pulse is one wavefront's execution scope: state machine, sequence
// bookkeeping, and single-trap enforcement. One Pulse serves exactly one
// correlation, including a nested Pulse started by the refraction router.
type Pulse struct {
	mu sync.Mutex

	correlationID string
	prismID       domain.PrismId
	frequency     domain.Frequency
	isStream      bool
	streamField   string
	outSchema     *schema.Schema

	state      domain.PulseState
	nextSeq    int
	emitCount  int64
	trapSent   atomic.Bool
	cancelled  atomic.Bool
}

// newPulse creates a Pulse in the Created state.
func newPulse(correlationID string, prismID domain.PrismId, w *domain.Wavelength, outSchema *schema.Schema) *Pulse {
	return &Pulse{
		correlationID: correlationID,
		prismID:       prismID,
		frequency:     w.Frequency,
		isStream:      w.IsStream,
		streamField:   w.StreamField,
		outSchema:     outSchema,
		state:         domain.PulseCreated,
	}
}

func (p *Pulse) setState(s domain.PulseState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// State returns the Pulse's current lifecycle state.
func (p *Pulse) State() domain.PulseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cancel marks the Pulse cancelled, observable by cooperative suspension
// points. It does not itself stop the prism; the engine's photon callback
// checks it and drops photons once it is set.
func (p *Pulse) Cancel() {
	p.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called for this Pulse.
func (p *Pulse) Cancelled() bool {
	return p.cancelled.Load()
}

// acceptEmit validates one emitted value against the wavelength's output
// contract and assigns it the next sequence number. Non-stream wavelengths
// accept exactly one emit; a second call is rejected.
func (p *Pulse) acceptEmit(value any) (seq int, validationErrs []schema.Error, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isStream && p.emitCount > 0 {
		return 0, nil, fmt.Errorf("wavelength %q: non-stream wavelength emitted more than once", p.frequency)
	}
	p.emitCount++

	validationErrs = validateOutputValue(p.outSchema, value, p.isStream, p.streamField)

	seq = p.nextSeq
	p.nextSeq++
	return seq, validationErrs, nil
}

// acceptSequence checks a photon sequence received from the prism's own
// framing against the expected contiguous 0..N-1 run, for the case where
// the prism assigns sequence numbers itself (native ABI boundary) rather
// than the engine. Returns false when the photon should be dropped.
func (p *Pulse) acceptSequence(seq int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.trapSent.Load() {
		return false
	}
	if seq != p.nextSeq {
		return false
	}
	p.nextSeq++
	return true
}

// markTrapSent records that the single terminal trap for this correlation
// has been emitted; further photons must be dropped and logged.
func (p *Pulse) markTrapSent() bool {
	return p.trapSent.CompareAndSwap(false, true)
}

// validateOutputValue applies §4.5 step 3's stream exemption: the field
// named by x-uv-stream carries a free-form payload and is excluded from
// schema validation, while every other top-level property is validated
// normally.
func validateOutputValue(s *schema.Schema, value any, isStream bool, streamField string) []schema.Error {
	errs := s.Validate(value, schema.ModeOutputLenient)
	if !isStream || streamField == "" {
		return errs
	}
	exempt := "$." + streamField
	var filtered []schema.Error
	for _, e := range errs {
		if e.Path == exempt || strings.HasPrefix(e.Path, exempt+".") || strings.HasPrefix(e.Path, exempt+"[") {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}
