package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/svmzner/internal/orchestration"
)

// DestroyOptions configure the destroy command.
type DestroyOptions struct {
	GlobalOptions
	Sweep       bool
	KeepSecrets bool
	// Yes skips the confirmation prompt.
	Yes bool
}

// Destroy handles the destroy command.
//
// It deletes the server, volumes, firewall and SSH key of the deployment,
// then the sealed role keys and the deployment record. The ledger and every
// key are lost unless --keep-secrets is set.
func Destroy(ctx context.Context, opts DestroyOptions) error {
	s, err := openSession(ctx, opts.GlobalOptions, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if !opts.Yes {
		if err := confirmDestroy(s.cfg.Deployment); err != nil {
			return err
		}
	}

	s.observer.Printf("Destroying deployment %s", s.cfg.Deployment)
	if err := s.reconciler.Destroy(ctx, orchestration.DestroyOptions{
		Sweep:       opts.Sweep,
		KeepSecrets: opts.KeepSecrets,
	}); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}
	fmt.Fprintf(stdout, "Deployment %s destroyed\n", s.cfg.Deployment)
	return nil
}

// confirmDestroy asks the operator to type the deployment name.
func confirmDestroy(deployment string) error {
	if !isTerminal() {
		return errors.New("refusing to destroy without --yes when stdin is not a terminal")
	}
	fmt.Fprintf(stdout, "This deletes every resource and key of %s. Type the deployment name to confirm: ", deployment)
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != deployment {
		return errors.New("destroy aborted")
	}
	return nil
}
