package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/svmzner/cmd/svmzner/handlers"
)

// Destroy returns the destroy command.
//
// The destroy command removes the deployment from Hetzner Cloud and deletes
// its keys and state. It is the only command that deletes key material.
func Destroy() *cobra.Command {
	var opts handlers.DestroyOptions

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the validator and all associated resources",
		Long: `Destroy removes the deployment and everything it owns.

This command deletes:
  - The server
  - The accounts and ledger volumes
  - The firewall
  - The SSH key
  - The sealed role keys and the SSH private key (unless --keep-secrets)
  - The deployment record

With --sweep every resource labeled with the deployment is deleted as well,
including resources the record no longer knows about.

Example:
  svmzner destroy -c devnet.yaml

WARNING: This operation is irreversible. The ledger and all keys are lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), opts)
		},
	}

	bindGlobalFlags(cmd, &opts.GlobalOptions)
	cmd.Flags().BoolVar(&opts.Sweep, "sweep", false, "Also delete every resource labeled with the deployment")
	cmd.Flags().BoolVar(&opts.KeepSecrets, "keep-secrets", false, "Keep the role keys and SSH key in the secret store")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
