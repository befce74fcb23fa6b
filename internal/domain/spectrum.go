package domain

import (
	"encoding/json"
	"fmt"
)

// Wavelength is one named operation on a prism: input/output schemas plus
// whether the operation streams photons before its terminal trap.
type Wavelength struct {
	Frequency    Frequency       `json:"frequency"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
	IsStream     bool            `json:"-"`
	// StreamField is the x-uv-stream marker's value: the output property
	// that carries the free-form streamed payload. Empty when IsStream is
	// false.
	StreamField string `json:"-"`
	// Display is the renderer-hint document. Passed through verbatim; the
	// runtime never interprets it.
	Display json.RawMessage `json:"display,omitempty"`
}

// Refraction is a declared typed call from one prism to another, with
// field-level transpose (caller -> callee input) and reflection
// (callee photon -> caller-visible photon).
type Refraction struct {
	Name          RefractionName `json:"name"`
	TargetPrismID string         `json:"target_prism_id"`
	TargetFreq    Frequency      `json:"target_frequency"`
	// Transpose maps a callee input field name to the caller field name
	// that supplies it (the source name may carry a trailing "?" marking
	// the binding optional). Keyed by the callee-side name for O(1) lookup
	// while assembling the outbound wavefront.
	Transpose map[string]string `json:"transpose"`
	// Reflection maps a new caller-visible photon field name to the callee
	// photon field it is sourced from, same optional-suffix convention.
	Reflection     map[string]string `json:"reflection"`
	ResolvedTarget PrismId           `json:"-"`
}

// Spectrum is the immutable, validated description of a prism, compiled
// once at load time and shared by every Pulse invoking it.
type Spectrum struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`

	Wavelengths []Wavelength `json:"wavelengths"`
	Refractions []Refraction `json:"refractions,omitempty"`

	// LoadWarnings collects non-fatal issues noticed while compiling this
	// spectrum, e.g. use of the returns_schema/return_schema synonym.
	LoadWarnings []string `json:"-"`
}

// ID returns this spectrum's canonical PrismId.
func (s *Spectrum) ID() PrismId {
	return PrismId{Namespace: s.Namespace, Name: s.Name}
}

// Wavelength looks up a declared frequency by name.
func (s *Spectrum) Wavelength(freq Frequency) (*Wavelength, bool) {
	for i := range s.Wavelengths {
		if s.Wavelengths[i].Frequency == freq {
			return &s.Wavelengths[i], true
		}
	}
	return nil, false
}

// Refraction looks up a declared refraction by name.
func (s *Spectrum) Refraction(name RefractionName) (*Refraction, bool) {
	for i := range s.Refractions {
		if s.Refractions[i].Name == name {
			return &s.Refractions[i], true
		}
	}
	return nil, false
}

// ValidateStructure checks invariants beyond what JSON unmarshalling
// already guarantees: unique frequency and refraction names, well-formed
// target IDs, and the is_stream/object-type coupling. Schema-internal
// validity is Compile's job, not this one's.
func (s *Spectrum) ValidateStructure() error {
	if s.Namespace == "" || s.Name == "" {
		return fmt.Errorf("spectrum missing namespace or name")
	}

	seenFreq := make(map[Frequency]bool, len(s.Wavelengths))
	for _, w := range s.Wavelengths {
		if w.Frequency == "" {
			return fmt.Errorf("wavelength with empty frequency")
		}
		if seenFreq[w.Frequency] {
			return fmt.Errorf("duplicate frequency %q", w.Frequency)
		}
		seenFreq[w.Frequency] = true
		if w.IsStream && !looksLikeObjectSchema(w.OutputSchema) {
			return fmt.Errorf("wavelength %q: is_stream requires an object output schema", w.Frequency)
		}
	}

	seenRefr := make(map[RefractionName]bool, len(s.Refractions))
	for i := range s.Refractions {
		r := &s.Refractions[i]
		if r.Name == "" {
			return fmt.Errorf("refraction with empty name")
		}
		if seenRefr[r.Name] {
			return fmt.Errorf("duplicate refraction %q", r.Name)
		}
		seenRefr[r.Name] = true

		id, err := ParsePrismId(r.TargetPrismID)
		if err != nil {
			return fmt.Errorf("refraction %q: %w", r.Name, err)
		}
		r.ResolvedTarget = id
	}

	return nil
}

func looksLikeObjectSchema(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Type == "" || probe.Type == "object"
}

// IsOptionalBinding reports whether a transpose/reflection source key carries
// the trailing "?" that marks it optional, returning the key with the
// marker stripped.
func IsOptionalBinding(key string) (base string, optional bool) {
	if len(key) > 0 && key[len(key)-1] == '?' {
		return key[:len(key)-1], true
	}
	return key, false
}
