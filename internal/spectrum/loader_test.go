package spectrum

import (
	"strings"
	"testing"
)

const validSpectrum = `{
	"namespace": "demo",
	"name": "greeter",
	"version": "1.0.0",
	"wavelengths": [
		{
			"frequency": "greet",
			"input_schema": {"type":"object","required":["who"],"properties":{"who":{"type":"string"}}},
			"output_schema": {"type":"object","properties":{"text":{"type":"string"}}}
		}
	]
}`

func TestLoadValidSpectrum(t *testing.T) {
	s, err := Load([]byte(validSpectrum), "test.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID().String() != "demo:greeter" {
		t.Fatalf("unexpected id: %s", s.ID())
	}
	if len(s.Wavelengths) != 1 {
		t.Fatalf("expected 1 wavelength, got %d", len(s.Wavelengths))
	}
	if len(s.LoadWarnings) != 0 {
		t.Fatalf("expected no warnings, got %v", s.LoadWarnings)
	}
}

func TestLoadRejectsMissingNamespace(t *testing.T) {
	_, err := Load([]byte(`{"name":"x","wavelengths":[{"frequency":"f"}]}`), "test.json")
	if err == nil {
		t.Fatal("expected error for missing namespace")
	}
	var m *Malformed
	if _, ok := err.(*Malformed); !ok {
		t.Fatalf("expected *Malformed, got %T (%v)", err, m)
	}
}

func TestLoadRejectsDuplicateFrequency(t *testing.T) {
	raw := `{
		"namespace": "demo",
		"name": "dup",
		"wavelengths": [
			{"frequency": "f", "output_schema": {"type":"object"}},
			{"frequency": "f", "output_schema": {"type":"object"}}
		]
	}`
	_, err := Load([]byte(raw), "test.json")
	if err == nil || !strings.Contains(err.Error(), "duplicate frequency") {
		t.Fatalf("expected duplicate frequency error, got %v", err)
	}
}

func TestLoadWarnsOnDeprecatedReturnsSchemaSynonym(t *testing.T) {
	raw := `{
		"namespace": "demo",
		"name": "legacy",
		"wavelengths": [
			{"frequency": "f", "returns_schema": {"type":"object"}}
		]
	}`
	s, err := Load([]byte(raw), "test.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.LoadWarnings) != 1 {
		t.Fatalf("expected one warning, got %v", s.LoadWarnings)
	}
}

func TestLoadDetectsStreamWavelength(t *testing.T) {
	raw := `{
		"namespace": "demo",
		"name": "streamer",
		"wavelengths": [
			{
				"frequency": "tail",
				"output_schema": {"type":"object","x-uv-stream":"line","properties":{"line":{"type":"string"}}}
			}
		]
	}`
	s, err := Load([]byte(raw), "test.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w, ok := s.Wavelength("tail")
	if !ok {
		t.Fatal("expected wavelength tail")
	}
	if !w.IsStream || w.StreamField != "line" {
		t.Fatalf("expected stream field line, got %+v", w)
	}
}

func TestLoadResolvesRefractionTarget(t *testing.T) {
	raw := `{
		"namespace": "demo",
		"name": "caller",
		"wavelengths": [{"frequency":"go","output_schema":{"type":"object"}}],
		"refractions": [
			{
				"name": "call-other",
				"target_prism_id": "demo:callee",
				"target_frequency": "do",
				"transpose": {"input": "who"},
				"reflection": {"result": "text"}
			}
		]
	}`
	s, err := Load([]byte(raw), "test.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := s.Refraction("call-other")
	if !ok {
		t.Fatal("expected refraction call-other")
	}
	if r.ResolvedTarget.String() != "demo:callee" {
		t.Fatalf("unexpected resolved target: %s", r.ResolvedTarget)
	}
}

func TestParseManifestMultiDocument(t *testing.T) {
	yamlDoc := `
namespace: demo
name: one
command: ["./prism-one"]
wavelengths:
  - frequency: ping
    output_schema:
      type: object
---
namespace: demo
name: two
command: ["./prism-two"]
wavelengths:
  - frequency: pong
    output_schema:
      type: object
`
	entries, err := ParseManifest(strings.NewReader(yamlDoc), "manifest.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Spectrum.Name != "one" || entries[1].Spectrum.Name != "two" {
		t.Fatalf("unexpected entry order: %+v", entries)
	}
	if entries[0].Command[0] != "./prism-one" {
		t.Fatalf("unexpected command: %v", entries[0].Command)
	}
}

func TestParseManifestRequiresCommand(t *testing.T) {
	yamlDoc := `
namespace: demo
name: missing-command
wavelengths:
  - frequency: ping
    output_schema:
      type: object
`
	_, err := ParseManifest(strings.NewReader(yamlDoc), "manifest.yaml")
	if err == nil {
		t.Fatal("expected error for missing command")
	}
}
