package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/spectrum"
)

// installManifest is the JSON shape written to <install_dir>/prisms/<ns>/<name>/spectrum.json.
// It mirrors domain.Spectrum's own field names directly.
type installManifest struct {
	Namespace   string              `json:"namespace"`
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	Wavelengths []domain.Wavelength `json:"wavelengths"`
	Refractions []domain.Refraction `json:"refractions,omitempty"`
}

func applyCmd() *cobra.Command {
	var (
		filePath string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Install prisms into the install directory from a YAML manifest",
		Long: `Install one or more prisms declared in a YAML manifest (supporting
multiple documents separated by "---") into the configured install
directory, so a subsequent "uv server" or one-shot invoke can discover them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return fmt.Errorf("file path required: use -f or --file")
			}

			parsed, err := spectrum.ParseManifestFile(filePath)
			if err != nil {
				return fmt.Errorf("parse %s: %w", filePath, err)
			}
			if len(parsed) == 0 {
				return fmt.Errorf("no prisms declared in %s", filePath)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			for _, p := range parsed {
				id := p.Spectrum.ID()
				if dryRun {
					printWarn("[dry-run] would install %s", id)
					continue
				}
				if err := installPrism(cfg.InstallDir, p); err != nil {
					return fmt.Errorf("install %s: %w", id, err)
				}
				printOK("installed %s", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the manifest YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print what would be installed without writing anything")
	return cmd
}

// installPrism writes <install_dir>/prisms/<ns>/<name>/spectrum.json plus a
// launch.json recording p.Command/p.Env, since a manifest's launch command
// is often an interpreter invocation ("python3 handler.py") rather than the
// single executable file discover.go's directory-scan heuristic expects.
func installPrism(installDir string, p spectrum.ParsedManifest) error {
	dir := filepath.Join(installDir, "prisms", p.Spectrum.Namespace, p.Spectrum.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prism dir: %w", err)
	}

	manifest := installManifest{
		Namespace:   p.Spectrum.Namespace,
		Name:        p.Spectrum.Name,
		Version:     p.Spectrum.Version,
		Description: p.Spectrum.Description,
		Wavelengths: p.Spectrum.Wavelengths,
		Refractions: p.Spectrum.Refractions,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spectrum: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "spectrum.json"), data, 0o644); err != nil {
		return fmt.Errorf("write spectrum.json: %w", err)
	}

	launch := struct {
		Command []string          `json:"command"`
		Env     map[string]string `json:"env,omitempty"`
	}{Command: p.Command, Env: p.Env}
	launchData, err := json.MarshalIndent(launch, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal launch command: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "launch.json"), launchData, 0o644)
}
