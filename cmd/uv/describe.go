package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/supervisor"
)

func describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <namespace>:<name>",
		Short: "Show a prism's spectrum and load health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParsePrismId(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sup, err := supervisor.New(cfg)
			if err != nil {
				return err
			}

			h, ok := sup.Registry.Resolve(id)
			if !ok {
				return domain.NewError(domain.ErrPrismNotFound, fmt.Sprintf("prism %s not discovered", id))
			}

			loadHealth := sup.Registry.BreakerState(id)
			if loadHealth == "" {
				loadHealth = "closed"
			}

			spec := h.Spectrum()
			out := struct {
				ID          string             `json:"id"`
				Version     string             `json:"version"`
				Description string             `json:"description,omitempty"`
				State       string             `json:"state"`
				LoadHealth  string             `json:"load_health"`
				Wavelengths []domain.Wavelength `json:"wavelengths"`
				Refractions []domain.Refraction `json:"refractions,omitempty"`
			}{
				ID:          id.String(),
				Version:     spec.Version,
				Description: spec.Description,
				State:       string(h.State()),
				LoadHealth:  loadHealth,
				Wavelengths: spec.Wavelengths,
				Refractions: spec.Refractions,
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	return cmd
}
