package spectrum

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ultraviolet/uv/internal/domain"
	"gopkg.in/yaml.v3"
)

// yamlWavelength mirrors manifestWavelength but with schema fields decoded
// as generic maps, since gopkg.in/yaml.v3 cannot decode a YAML mapping node
// directly into json.RawMessage the way encoding/json can.
type yamlWavelength struct {
	Frequency     string         `yaml:"frequency"`
	Description   string         `yaml:"description,omitempty"`
	InputSchema   map[string]any `yaml:"input_schema"`
	OutputSchema  map[string]any `yaml:"output_schema"`
	ReturnsSchema map[string]any `yaml:"returns_schema"`
	ReturnSchema  map[string]any `yaml:"return_schema"`
	Display       map[string]any `yaml:"display,omitempty"`
}

func (w yamlWavelength) toManifestWavelength() (manifestWavelength, error) {
	var out manifestWavelength
	out.Frequency = w.Frequency
	out.Description = w.Description

	var err error
	if out.InputSchema, err = rawOf(w.InputSchema); err != nil {
		return out, err
	}
	if out.OutputSchema, err = rawOf(w.OutputSchema); err != nil {
		return out, err
	}
	if out.ReturnsSchema, err = rawOf(w.ReturnsSchema); err != nil {
		return out, err
	}
	if out.ReturnSchema, err = rawOf(w.ReturnSchema); err != nil {
		return out, err
	}
	if out.Display, err = rawOf(w.Display); err != nil {
		return out, err
	}
	return out, nil
}

func rawOf(m map[string]any) (json.RawMessage, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// ManifestEntry is one `uv apply -f manifest.yaml` document: a prism to
// register plus how to reach it, mirroring spectrum.json's shape but
// allowing several documents in one YAML stream.
type ManifestEntry struct {
	Namespace   string               `yaml:"namespace"`
	Name        string               `yaml:"name"`
	Version     string               `yaml:"version,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Command     []string             `yaml:"command"`
	Env         map[string]string    `yaml:"env,omitempty"`
	Wavelengths []yamlWavelength     `yaml:"wavelengths"`
	Refractions []manifestRefraction `yaml:"refractions,omitempty"`
}

// ParsedManifest is one entry's declared spectrum plus the launch
// instructions the registry needs to start the prism process.
type ParsedManifest struct {
	Spectrum *domain.Spectrum
	Command  []string
	Env      map[string]string
}

// ParseManifestFile reads a multi-document uv apply manifest from path.
func ParseManifestFile(path string) ([]ParsedManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f, path)
}

// ParseManifest decodes every YAML document in r as a ManifestEntry, skips
// empty documents, and compiles each into a validated spectrum. path is used
// only in error messages.
func ParseManifest(r io.Reader, path string) ([]ParsedManifest, error) {
	decoder := yaml.NewDecoder(r)
	var out []ParsedManifest

	for {
		var entry ManifestEntry
		err := decoder.Decode(&entry)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", path, err)
		}
		if entry.Namespace == "" && entry.Name == "" {
			continue
		}
		if len(entry.Command) == 0 {
			return nil, &Malformed{Path: path, Reason: fmt.Sprintf("prism %s:%s missing command", entry.Namespace, entry.Name)}
		}

		wavelengths := make([]manifestWavelength, 0, len(entry.Wavelengths))
		for _, w := range entry.Wavelengths {
			mw, err := w.toManifestWavelength()
			if err != nil {
				return nil, fmt.Errorf("manifest entry %s:%s: re-encode wavelength %q: %w", entry.Namespace, entry.Name, w.Frequency, err)
			}
			wavelengths = append(wavelengths, mw)
		}

		m := manifest{
			Namespace:   entry.Namespace,
			Name:        entry.Name,
			Version:     entry.Version,
			Description: entry.Description,
			Wavelengths: wavelengths,
			Refractions: entry.Refractions,
		}
		raw, err := jsonOf(m)
		if err != nil {
			return nil, fmt.Errorf("re-encode manifest entry %s:%s: %w", entry.Namespace, entry.Name, err)
		}
		s, err := Load(raw, path)
		if err != nil {
			return nil, err
		}

		out = append(out, ParsedManifest{Spectrum: s, Command: entry.Command, Env: entry.Env})
	}

	if len(out) == 0 {
		return nil, &Malformed{Path: path, Reason: "no prism entries found"}
	}

	return out, nil
}
