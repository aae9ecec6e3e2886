// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/svmzner/cmd/svmzner/handlers"
)

// Root returns the root command for the svmzner CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "svmzner",
		Short:         "Provision an SVM validator on Hetzner Cloud",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(Apply())
	cmd.AddCommand(Status())
	cmd.AddCommand(Outputs())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Version())

	return cmd
}

// bindGlobalFlags registers the flags every command shares.
func bindGlobalFlags(cmd *cobra.Command, opts *handlers.GlobalOptions) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to configuration file (default: svmzner.yaml)")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "auto", "Log format: auto, console or json")
}
