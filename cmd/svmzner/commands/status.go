package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/svmzner/cmd/svmzner/handlers"
)

// Status returns the command that shows the recorded deployment state.
func Status() *cobra.Command {
	var opts handlers.StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployment stage and the last failure",
		Long: `Show the recorded stage of the deployment, the genesis fingerprint and
the last failed step, if any.

With --live the validator service on the host is queried as well, and a
running configuration that differs from the recorded one is reported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Status(cmd.Context(), opts)
		},
	}

	bindGlobalFlags(cmd, &opts.GlobalOptions)
	cmd.Flags().BoolVar(&opts.Live, "live", false, "Also query the validator service on the host")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}
