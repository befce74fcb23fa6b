package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ultraviolet/uv/internal/domain"
)

var configFile string

func main() {
	var invokePayload string

	rootCmd := &cobra.Command{
		Use:   "uv <namespace>:<name> <frequency> [json-input]",
		Short: "Ultraviolet - a plugin-oriented service runtime",
		Long: `Load prisms, call their frequencies, and run a long-lived server
speaking the Beam wire protocol.

Bare invocation ("uv demo:greeter greet '{\"name\":\"ada\"}'") runs a
one-shot local invoke against the install directory; see the subcommands
for everything else.`,
		Args: cobra.RangeArgs(0, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			input := invokePayload
			if len(args) == 3 {
				input = args[2]
			}
			if len(args) < 2 {
				return fmt.Errorf("usage: uv <namespace>:<name> <frequency> [json-input]")
			}
			return runInvoke(cmd.Context(), args[0], args[1], input)
		},
	}

	rootCmd.Flags().StringVarP(&invokePayload, "payload", "p", "{}", "JSON payload, when not given positionally")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (optional, env and flags override)")

	rootCmd.AddCommand(
		serverCmd(),
		listCmd(),
		describeCmd(),
		applyCmd(),
		unloadCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error surfaced at the CLI boundary to a process exit
// code, using domain.ErrorKind.ExitCode as the single source of truth when
// the error carries one.
func exitCodeFor(err error) int {
	var uerr *domain.UVError
	if e, ok := err.(*domain.UVError); ok {
		uerr = e
	} else if cause := unwrapUVError(err); cause != nil {
		uerr = cause
	}
	if uerr != nil {
		return uerr.Kind.ExitCode()
	}
	return 1
}

func unwrapUVError(err error) *domain.UVError {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*domain.UVError); ok {
			return e
		}
		u, ok := err.(unwrapper)
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
