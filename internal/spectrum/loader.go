// Package spectrum implements the spectrum loader: parsing spectrum.json
// manifests into validated, schema-compiled domain.Spectrum values.
package spectrum

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/schema"
)

// manifestWavelength mirrors spectrum.json's wavelength shape, including
// both spellings of the output-schema key.
type manifestWavelength struct {
	Frequency     string          `json:"frequency"`
	Description   string          `json:"description,omitempty"`
	InputSchema   json.RawMessage `json:"input_schema"`
	OutputSchema  json.RawMessage `json:"output_schema"`
	ReturnsSchema json.RawMessage `json:"returns_schema"`
	ReturnSchema  json.RawMessage `json:"return_schema"`
	Display       json.RawMessage `json:"display,omitempty"`
}

type manifestRefraction struct {
	Name          string            `json:"name" yaml:"name"`
	TargetPrismID string            `json:"target_prism_id" yaml:"target_prism_id"`
	TargetFreq    string            `json:"target_frequency" yaml:"target_frequency"`
	Transpose     map[string]string `json:"transpose" yaml:"transpose"`
	Reflection    map[string]string `json:"reflection" yaml:"reflection"`
}

type manifest struct {
	Namespace   string               `json:"namespace"`
	Name        string               `json:"name"`
	Version     string               `json:"version"`
	Description string               `json:"description,omitempty"`
	Wavelengths []manifestWavelength `json:"wavelengths"`
	Refractions []manifestRefraction `json:"refractions,omitempty"`
}

// Malformed wraps a spectrum loading failure so callers can recognize and
// report it without string-matching error text.
type Malformed struct {
	Path   string
	Reason string
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("spectrum malformed (%s): %s", e.Path, e.Reason)
}

// LoadFile reads and compiles a spectrum.json file at path.
func LoadFile(path string) (*domain.Spectrum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Malformed{Path: path, Reason: err.Error()}
	}
	return Load(data, path)
}

// Load parses and compiles raw spectrum.json bytes. path is used only for
// error messages.
func Load(data []byte, path string) (*domain.Spectrum, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &Malformed{Path: path, Reason: "invalid JSON: " + err.Error()}
	}
	if m.Namespace == "" {
		return nil, &Malformed{Path: path, Reason: "missing namespace"}
	}
	if m.Name == "" {
		return nil, &Malformed{Path: path, Reason: "missing name"}
	}
	if len(m.Wavelengths) == 0 {
		return nil, &Malformed{Path: path, Reason: "no wavelengths declared"}
	}

	s := &domain.Spectrum{
		Namespace:   m.Namespace,
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
	}

	for _, mw := range m.Wavelengths {
		if mw.Frequency == "" {
			return nil, &Malformed{Path: path, Reason: "wavelength missing frequency"}
		}

		outputRaw, warn := resolveOutputSchema(mw)
		if warn != "" {
			s.LoadWarnings = append(s.LoadWarnings, fmt.Sprintf("%s/%s: %s", m.Name, mw.Frequency, warn))
		}

		outSchema, err := schema.Compile(outputRaw)
		if err != nil {
			return nil, &Malformed{Path: path, Reason: fmt.Sprintf("wavelength %q output schema: %v", mw.Frequency, err)}
		}
		if _, err := schema.Compile(mw.InputSchema); err != nil {
			return nil, &Malformed{Path: path, Reason: fmt.Sprintf("wavelength %q input schema: %v", mw.Frequency, err)}
		}

		streamField, isStream := outSchema.StreamField()

		w := domain.Wavelength{
			Frequency:    domain.Frequency(mw.Frequency),
			Description:  mw.Description,
			InputSchema:  mw.InputSchema,
			OutputSchema: outputRaw,
			IsStream:     isStream,
			StreamField:  streamField,
			Display:      mw.Display,
		}
		s.Wavelengths = append(s.Wavelengths, w)
	}

	for _, mr := range m.Refractions {
		s.Refractions = append(s.Refractions, domain.Refraction{
			Name:          domain.RefractionName(mr.Name),
			TargetPrismID: mr.TargetPrismID,
			TargetFreq:    domain.Frequency(mr.TargetFreq),
			Transpose:     mr.Transpose,
			Reflection:    mr.Reflection,
		})
	}

	if err := s.ValidateStructure(); err != nil {
		return nil, &Malformed{Path: path, Reason: err.Error()}
	}

	if err := validateRefractionBindings(s); err != nil {
		return nil, &Malformed{Path: path, Reason: err.Error()}
	}

	return s, nil
}

// resolveOutputSchema accepts output_schema, returns_schema, or
// return_schema as synonyms, warning at load time when a non-canonical
// spelling is the one present.
func resolveOutputSchema(mw manifestWavelength) (json.RawMessage, string) {
	if len(mw.OutputSchema) > 0 {
		if len(mw.ReturnsSchema) > 0 || len(mw.ReturnSchema) > 0 {
			return mw.OutputSchema, "both output_schema and a returns_schema/return_schema synonym present; output_schema wins"
		}
		return mw.OutputSchema, ""
	}
	if len(mw.ReturnsSchema) > 0 {
		return mw.ReturnsSchema, "using deprecated synonym \"returns_schema\"; prefer \"output_schema\""
	}
	if len(mw.ReturnSchema) > 0 {
		return mw.ReturnSchema, "using deprecated synonym \"return_schema\"; prefer \"output_schema\""
	}
	return nil, ""
}

// jsonOf re-encodes a YAML-decoded manifest value through its json tags so
// ParseManifest can feed it through the same Load path as spectrum.json,
// rather than duplicating the compile/validate logic for YAML.
func jsonOf(m manifest) (json.RawMessage, error) {
	return json.Marshal(m)
}

// validateRefractionBindings checks that transpose/reflection target keys
// are non-empty. Keys are not checked against the caller's or callee's
// declared schemas, here or elsewhere: the refraction router applies the
// mappings at call time and reports an absent required source field as
// TransposeMissing.
func validateRefractionBindings(s *domain.Spectrum) error {
	for _, r := range s.Refractions {
		for target := range r.Transpose {
			if target == "" {
				return fmt.Errorf("refraction %q: empty transpose target key", r.Name)
			}
		}
		for target := range r.Reflection {
			if target == "" {
				return fmt.Errorf("refraction %q: empty reflection target key", r.Name)
			}
		}
	}
	return nil
}
