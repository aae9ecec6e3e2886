package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/async"
	"github.com/imamik/svmzner/internal/util/naming"
)

// Sweeper deletes every resource carrying the given labels. The Hetzner
// adapter implements it; providers without label queries do not.
type Sweeper interface {
	CleanupByLabel(ctx context.Context, labels map[string]string) error
}

// DestroyOptions control teardown.
type DestroyOptions struct {
	// Sweep additionally deletes everything labeled with the deployment.
	Sweep bool
	// KeepSecrets leaves the role keys and the SSH key in the secret store.
	KeepSecrets bool
}

// Destroy tears the deployment down: the server first, then the volumes,
// firewall and SSH key in parallel, then the sealed keys and the record.
// It is the only operation that deletes key material.
func (r *Reconciler) Destroy(ctx context.Context, opts DestroyOptions) error {
	rec, err := r.load(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeouts.Delete)
	defer cancel()

	dep := r.cfg.Deployment
	server := naming.Server(dep)
	if err := r.provider.DeleteComputeInstance(ctx, server); err != nil {
		return fmt.Errorf("failed to delete server %s: %w", server, err)
	}
	provisioning.LogResourceDeleted(r.observer, "destroy", "server", server)

	var tasks []async.Task
	for _, name := range r.volumeNames(rec) {
		tasks = append(tasks, r.deleteTask("volume", name, r.provider.DeleteVolume))
	}
	tasks = append(tasks,
		r.deleteTask("firewall", naming.Firewall(dep), r.provider.DeleteNetworkRules),
		r.deleteTask("ssh_key", naming.SSHKey(dep), r.provider.DeleteSSHKey),
	)
	if err := async.RunParallel(ctx, tasks); err != nil {
		return err
	}

	if opts.Sweep {
		sweeper, ok := r.provider.(Sweeper)
		if !ok {
			return errors.New("provider cannot sweep by label")
		}
		if err := sweeper.CleanupByLabel(ctx, r.sweepSelector()); err != nil {
			return fmt.Errorf("failed to sweep resources of %s: %w", dep, err)
		}
	}

	if !opts.KeepSecrets {
		if err := r.keyring.Destroy(ctx); err != nil {
			return fmt.Errorf("failed to delete role keys: %w", err)
		}
		if err := r.secrets.Delete(ctx, sshKeySecretID(dep)); err != nil {
			return fmt.Errorf("failed to delete ssh key: %w", err)
		}
	}

	if err := r.store.Delete(ctx, dep); err != nil {
		return fmt.Errorf("failed to delete state of %s: %w", dep, err)
	}
	r.observer.Printf("Deployment %s destroyed", dep)
	return nil
}

func (r *Reconciler) deleteTask(kind, name string, del func(context.Context, string) error) async.Task {
	return async.Task{
		Name: name,
		Func: func(ctx context.Context) error {
			if err := del(ctx, name); err != nil {
				return err
			}
			provisioning.LogResourceDeleted(r.observer, "destroy", kind, name)
			return nil
		},
	}
}

// volumeNames joins the configured volumes with the recorded ones, so a
// role removed from the config is still torn down.
func (r *Reconciler) volumeNames(rec *state.Record) []string {
	names := map[string]bool{}
	for _, v := range r.cfg.Volumes {
		names[naming.Volume(r.cfg.Deployment, v.Role)] = true
	}
	for _, v := range rec.Volumes {
		names[v.Name] = true
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
