package domain

import "testing"

func TestSpectrumValidateStructureDuplicateFrequency(t *testing.T) {
	s := &Spectrum{
		Namespace: "core",
		Name:      "command",
		Wavelengths: []Wavelength{
			{Frequency: "exec"},
			{Frequency: "exec"},
		},
	}
	if err := s.ValidateStructure(); err == nil {
		t.Fatal("expected duplicate frequency error")
	}
}

func TestSpectrumValidateStructureStreamRequiresObject(t *testing.T) {
	s := &Spectrum{
		Namespace: "core",
		Name:      "command",
		Wavelengths: []Wavelength{
			{Frequency: "exec_stream", IsStream: true, OutputSchema: []byte(`{"type":"string"}`)},
		},
	}
	if err := s.ValidateStructure(); err == nil {
		t.Fatal("expected stream/object mismatch error")
	}
}

func TestSpectrumValidateStructureResolvesRefractionTarget(t *testing.T) {
	s := &Spectrum{
		Namespace: "ai",
		Name:      "context",
		Refractions: []Refraction{
			{Name: "lookup", TargetPrismID: "system:discovery", TargetFreq: "list"},
		},
	}
	if err := s.ValidateStructure(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Refractions[0].ResolvedTarget != (PrismId{Namespace: "system", Name: "discovery"}) {
		t.Fatalf("got %+v", s.Refractions[0].ResolvedTarget)
	}
}

func TestIsOptionalBinding(t *testing.T) {
	if base, opt := IsOptionalBinding("prompt?"); base != "prompt" || !opt {
		t.Fatalf("got %q %v", base, opt)
	}
	if base, opt := IsOptionalBinding("prompt"); base != "prompt" || opt {
		t.Fatalf("got %q %v", base, opt)
	}
}
