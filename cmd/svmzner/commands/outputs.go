package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/svmzner/cmd/svmzner/handlers"
)

// Outputs returns the command that prints connection details.
func Outputs() *cobra.Command {
	var opts handlers.OutputsOptions

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the public address and SSH access",
		Long: `Print the public address of the validator host and how to reach it
over SSH. The SSH private key is redacted unless --show-secrets is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Outputs(cmd.Context(), opts)
		},
	}

	bindGlobalFlags(cmd, &opts.GlobalOptions)
	cmd.Flags().BoolVar(&opts.ShowSecrets, "show-secrets", false, "Print the SSH private key")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}
