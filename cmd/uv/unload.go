package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ultraviolet/uv/internal/domain"
	"github.com/ultraviolet/uv/internal/supervisor"
)

// unloadCmd loads a prism, then immediately tears it down again. A one-shot
// invoke already loads a prism implicitly through Engine.Invoke and leaves
// it resident for the next call; this command exists to force a clean
// restart of a prism's subprocess (after replacing its binary, say)
// without waiting for LRU eviction or a server shutdown.
func unloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unload <namespace>:<name>",
		Short: "Load then immediately tear down a prism's subprocess",
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

			ctx := context.Background()
			h, err := sup.Registry.Load(ctx, id)
			if err != nil {
				return err
			}
			sup.Registry.Release(h)

			if err := sup.Registry.Unload(ctx, id); err != nil {
				return err
			}
			printOK("unloaded %s", id)
			return nil
		},
	}
	return cmd
}
