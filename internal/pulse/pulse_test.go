package pulse

import (
	"encoding/json"
	"testing"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/schema"
)

func mustCompile(t *testing.T, raw string) *schema.Schema {
	t.Helper()
	s, err := schema.Compile(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return s
}

func TestPulseNonStreamRejectsSecondEmit(t *testing.T) {
	out := mustCompile(t, `{"type":"object","properties":{"value":{"type":"string"}}}`)
	w := &domain.Wavelength{Frequency: "now", IsStream: false}
	p := newPulse("c1", domain.PrismId{Namespace: "demo", Name: "clock"}, w, out)

	if _, _, err := p.acceptEmit(map[string]any{"value": "a"}); err != nil {
		t.Fatalf("first emit should succeed: %v", err)
	}
	if _, _, err := p.acceptEmit(map[string]any{"value": "b"}); err == nil {
		t.Fatal("expected second emit on non-stream wavelength to be rejected")
	}
}

func TestPulseStreamAllowsMultipleEmitsWithSequence(t *testing.T) {
	out := mustCompile(t, `{"type":"object","properties":{"line":{"type":"string"}},"x-uv-stream":"line"}`)
	streamField, _ := out.StreamField()
	w := &domain.Wavelength{Frequency: "exec_stream", IsStream: true, StreamField: streamField}
	p := newPulse("c2", domain.PrismId{Namespace: "core", Name: "command"}, w, out)

	seq0, _, err := p.acceptEmit(map[string]any{"line": "a"})
	if err != nil {
		t.Fatalf("emit 0: %v", err)
	}
	seq1, _, err := p.acceptEmit(map[string]any{"line": "b"})
	if err != nil {
		t.Fatalf("emit 1: %v", err)
	}
	if seq0 != 0 || seq1 != 1 {
		t.Fatalf("expected contiguous sequence 0,1, got %d,%d", seq0, seq1)
	}
}

func TestValidateOutputValueExemptsStreamField(t *testing.T) {
	out := mustCompile(t, `{"type":"object","properties":{"line":{"type":"integer"}},"x-uv-stream":"line"}`)
	errs := validateOutputValue(out, map[string]any{"line": "not-an-integer"}, true, "line")
	if len(errs) != 0 {
		t.Fatalf("expected stream field content to be exempt from validation, got %v", errs)
	}
}

func TestValidateOutputValueChecksEnvelopeFields(t *testing.T) {
	out := mustCompile(t, `{"type":"object","properties":{"line":{"type":"string"},"index":{"type":"integer"}},"x-uv-stream":"line"}`)
	errs := validateOutputValue(out, map[string]any{"line": "ok", "index": "not-an-int"}, true, "line")
	if len(errs) == 0 {
		t.Fatal("expected envelope field index to be validated")
	}
}

func TestPulseStateTransitions(t *testing.T) {
	out := mustCompile(t, `{"type":"object"}`)
	w := &domain.Wavelength{Frequency: "ping"}
	p := newPulse("c3", domain.PrismId{Namespace: "demo", Name: "one"}, w, out)

	if p.State() != domain.PulseCreated {
		t.Fatalf("expected Created, got %s", p.State())
	}
	p.setState(domain.PulseRunning)
	if p.State() != domain.PulseRunning {
		t.Fatalf("expected Running, got %s", p.State())
	}
	if !p.markTrapSent() {
		t.Fatal("expected first markTrapSent to succeed")
	}
	if p.markTrapSent() {
		t.Fatal("expected second markTrapSent to fail, only one trap per correlation")
	}
}
