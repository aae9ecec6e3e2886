package orchestration

import (
	"context"
	"fmt"
	"strconv"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/provisioning/bootstrap"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/naming"
)

// instanceSpec builds the server request from the resources recorded so
// far. The first-boot script is rendered from the volumes, so it only
// changes when they do.
func (r *Reconciler) instanceSpec() (provisioning.InstanceSpec, error) {
	var (
		image    provisioning.ImageRef
		sshKey   provisioning.SSHKeyRef
		firewall provisioning.NetworkRuleSetRef
		volumes  []provisioning.VolumeRef
	)
	r.view(func(rec *state.Record) {
		image, sshKey, firewall = rec.Image, rec.SSHKey, rec.Firewall
		volumes = volumeRefs(rec)
	})

	for _, vc := range r.cfg.Volumes {
		found := false
		for _, v := range volumes {
			found = found || v.Role == vc.Role
		}
		if !found {
			return provisioning.InstanceSpec{}, fmt.Errorf("volume for role %s has not been provisioned", vc.Role)
		}
	}

	script, err := bootstrap.Script(bootstrap.Options{
		ServiceUser: r.cfg.Tools.ServiceUser,
		Mounts:      bootstrap.MountsFor(volumes),
	})
	if err != nil {
		return provisioning.InstanceSpec{}, fmt.Errorf("failed to render first-boot script: %w", err)
	}

	return provisioning.InstanceSpec{
		Name:            naming.Server(r.cfg.Deployment),
		ServerType:      r.cfg.ServerType,
		Location:        r.cfg.Location,
		Image:           image,
		SSHKey:          sshKey,
		Firewall:        firewall,
		Volumes:         volumes,
		FirstBootScript: script,
		Labels:          r.deploymentLabels(),
	}, nil
}

func (r *Reconciler) ensureInstance(ctx context.Context) error {
	spec, err := r.instanceSpec()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeouts.ServerCreate)
	defer cancel()

	provisioning.LogResourceCreating(r.observer, nodeInstance, "server", spec.Name)
	instance, err := r.provider.EnsureComputeInstance(ctx, spec)
	if err != nil {
		return err
	}
	provisioning.LogResourceCreated(r.observer, nodeInstance, "server", spec.Name, strconv.FormatInt(instance.ID, 10))

	r.update(func(rec *state.Record) { rec.Instance = instance })
	return nil
}
