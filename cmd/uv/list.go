package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ultraviolet/uv/internal/supervisor"
)

func listCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List every discovered prism",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sup, err := supervisor.New(cfg)
			if err != nil {
				return err
			}

			t := newTable("PRISM", "VERSION", "STATE", "FREQUENCIES")
			for _, h := range sup.Registry.List() {
				id := h.ID().String()
				if filter != "" && !strings.Contains(id, filter) {
					continue
				}
				spec := h.Spectrum()
				freqs := make([]string, 0, len(spec.Wavelengths))
				for _, w := range spec.Wavelengths {
					freqs = append(freqs, string(w.Frequency))
				}
				t.AddRow(id, spec.Version, string(h.State()), strings.Join(freqs, ", "))
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only list prisms whose id contains this substring")
	return cmd
}
