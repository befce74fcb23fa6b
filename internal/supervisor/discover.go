package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ultraviolet/uv/internal/spectrum"
)

// discoveredPrism is one leaf of the install tree: a compiled spectrum plus
// the command that launches its subprocess.
type discoveredPrism struct {
	spectrumPath string
	command      []string
	env          map[string]string
}

// launchManifest is the optional launch.json sidecar "uv apply" writes
// alongside spectrum.json when a manifest's command is not itself a single
// executable file (an interpreter invocation, for instance).
type launchManifest struct {
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`
}

// scanInstallDir walks <installDir>/prisms/<namespace>/<name>/ looking for
// spectrum.json leaves, matching the prism directory layout from §6's
// external interfaces. Each leaf must also hold either a launch.json sidecar,
// whose command is used when present, or an executable regular file
// alongside spectrum.json; that file is the subprocess command the registry
// spawns in place of the original ABI's dlopen'd module. When several
// executable files are present, the first in directory order is used.
func scanInstallDir(installDir string) ([]discoveredPrism, error) {
	root := filepath.Join(installDir, "prisms")
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan install dir %s: %w", root, err)
	}

	var found []discoveredPrism
	for _, nsEntry := range entries {
		if !nsEntry.IsDir() {
			continue
		}
		nsDir := filepath.Join(root, nsEntry.Name())
		nameEntries, err := os.ReadDir(nsDir)
		if err != nil {
			return nil, fmt.Errorf("scan namespace dir %s: %w", nsDir, err)
		}
		for _, nameEntry := range nameEntries {
			if !nameEntry.IsDir() {
				continue
			}
			leaf := filepath.Join(nsDir, nameEntry.Name())
			p, err := scanLeaf(leaf)
			if err != nil {
				return nil, err
			}
			if p != nil {
				found = append(found, *p)
			}
		}
	}
	return found, nil
}

func scanLeaf(dir string) (*discoveredPrism, error) {
	specPath := filepath.Join(dir, "spectrum.json")
	if _, err := os.Stat(specPath); err != nil {
		return nil, nil
	}

	if launchPath := filepath.Join(dir, "launch.json"); fileExists(launchPath) {
		data, err := os.ReadFile(launchPath)
		if err != nil {
			return nil, fmt.Errorf("read launch.json %s: %w", launchPath, err)
		}
		var lm launchManifest
		if err := json.Unmarshal(data, &lm); err != nil {
			return nil, fmt.Errorf("parse launch.json %s: %w", launchPath, err)
		}
		if len(lm.Command) == 0 {
			return nil, fmt.Errorf("launch.json %s: empty command", launchPath)
		}
		return &discoveredPrism{spectrumPath: specPath, command: lm.Command, env: lm.Env}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prism dir %s: %w", dir, err)
	}

	var command string
	for _, e := range entries {
		if e.IsDir() || e.Name() == "spectrum.json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode()&0o111 != 0 {
			command = filepath.Join(dir, e.Name())
			break
		}
	}
	if command == "" {
		return nil, fmt.Errorf("prism dir %s: spectrum.json present but no executable module or launch.json found", dir)
	}

	return &discoveredPrism{spectrumPath: specPath, command: []string{command}}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadSpectrum is a thin wrapper so tests can stub discovery without a real
// spectrum.json on disk.
var loadSpectrum = spectrum.LoadFile
