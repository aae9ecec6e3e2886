package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imamik/svmzner/internal/secret"
)

// OutputsOptions configure the outputs command.
type OutputsOptions struct {
	GlobalOptions
	// ShowSecrets prints the SSH private key instead of [REDACTED].
	ShowSecrets bool
	JSON        bool
}

type outputsView struct {
	PublicAddress string `json:"public_address"`
	SSHUser       string `json:"ssh_user"`
	SSHPort       int    `json:"ssh_port"`
	SSHPrivateKey string `json:"ssh_private_key"`
}

// Outputs prints what an operator needs to reach the host.
func Outputs(ctx context.Context, opts OutputsOptions) error {
	s, err := openSession(ctx, opts.GlobalOptions, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	out, err := s.reconciler.Outputs(ctx)
	if err != nil {
		return err
	}

	view := outputsView{
		PublicAddress: out.PublicAddress,
		SSHUser:       out.SSHUser,
		SSHPort:       out.SSHPort,
		SSHPrivateKey: secret.Redacted,
	}
	if opts.ShowSecrets {
		view.SSHPrivateKey = string(out.SSHPrivateKey.Reveal())
	}

	if opts.JSON {
		b, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(b))
		return nil
	}

	fmt.Fprintf(stdout, "public_address = %s\n", view.PublicAddress)
	fmt.Fprintf(stdout, "ssh_user = %s\n", view.SSHUser)
	fmt.Fprintf(stdout, "ssh_port = %d\n", view.SSHPort)
	fmt.Fprintf(stdout, "ssh_command = ssh -p %d %s@%s\n", view.SSHPort, view.SSHUser, view.PublicAddress)
	fmt.Fprintf(stdout, "ssh_private_key = %s\n", view.SSHPrivateKey)
	return nil
}
