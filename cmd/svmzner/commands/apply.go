package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/svmzner/cmd/svmzner/handlers"
)

// Apply returns the command that provisions or resumes a deployment.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: auto-detect svmzner.yaml)
//	--metrics-file: Write run metrics in the Prometheus text format
//	--log-format: auto, console or json
//
// Environment variables:
//
//	HCLOUD_TOKEN: Hetzner Cloud API token (required)
func Apply() *cobra.Command {
	var opts handlers.ApplyOptions

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create the validator or resume an interrupted run",
		Long: `Create the validator deployment, or resume it where the last run stopped.

This command creates the server, volumes, firewall and SSH key on Hetzner
Cloud, generates the role keys, builds the genesis ledger on the host and
starts the validator service.

Every step is idempotent. A failed run keeps everything it created and
records the failed step; running apply again continues from there. Keys are
generated once and never replaced.

Examples:
  # Apply using svmzner.yaml in the current directory
  svmzner apply

  # Apply a specific config and export metrics for the node exporter
  svmzner apply -c devnet.yaml --metrics-file /var/lib/node_exporter/svmzner.prom`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), opts)
		},
	}

	bindGlobalFlags(cmd, &opts.GlobalOptions)
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write run metrics to this file in the Prometheus text format")

	return cmd
}
