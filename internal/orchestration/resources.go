package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/secret"
	"github.com/imamik/svmzner/internal/state"
	"github.com/imamik/svmzner/internal/util/async"
	"github.com/imamik/svmzner/internal/util/keygen"
	"github.com/imamik/svmzner/internal/util/naming"
)

// sshKeySecretID is where the deployment's SSH private key is sealed.
func sshKeySecretID(deployment string) string {
	return deployment + "/ssh/private"
}

func (r *Reconciler) ensureImage(ctx context.Context) error {
	var pinned int64
	r.view(func(rec *state.Record) { pinned = rec.Image.ID })

	ref, err := r.provider.EnsureMachineImage(ctx, provisioning.ImageFilter{
		NamePattern:  r.cfg.Image.Name,
		Architecture: r.cfg.Image.Architecture,
		Owner:        provisioning.ImageOwner(r.cfg.Image.Owner),
		PinnedID:     pinned,
	})
	if err != nil {
		return err
	}
	r.observer.Printf("[%s] Using image %s (%d)", nodeImage, ref.Name, ref.ID)
	r.update(func(rec *state.Record) { rec.Image = ref })
	return nil
}

// ensureSSHKey loads the sealed SSH private key, generating it on the first
// run, and registers its public half with the provider.
func (r *Reconciler) ensureSSHKey(ctx context.Context) error {
	id := sshKeySecretID(r.cfg.Deployment)

	private, err := r.secrets.Get(ctx, id)
	switch {
	case errors.Is(err, secret.ErrNotFound):
		kp, genErr := keygen.GenerateED25519KeyPair(r.random, r.cfg.Deployment)
		if genErr != nil {
			return &provisioning.GenerationError{Role: "ssh", Err: genErr}
		}
		if err := r.secrets.Put(ctx, id, kp.PrivateKey); err != nil {
			return fmt.Errorf("failed to seal ssh private key: %w", err)
		}
		private = kp.PrivateKey
		r.observer.Printf("[%s] Generated ssh key pair", nodeSSHKey)
	case err != nil:
		return fmt.Errorf("failed to load ssh private key: %w", err)
	}

	public, err := keygen.PublicKeyFromPrivate(private)
	if err != nil {
		return err
	}

	name := naming.SSHKey(r.cfg.Deployment)
	ref, err := r.provider.EnsureSSHKey(ctx, name, strings.TrimSpace(string(public)), r.deploymentLabels())
	if err != nil {
		return err
	}
	provisioning.LogResourceExists(r.observer, nodeSSHKey, "ssh_key", name, strconv.FormatInt(ref.ID, 10))

	r.run.setCredential(private)
	r.update(func(rec *state.Record) {
		rec.SSHKey = ref
		rec.SSHPrivateKeyID = id
	})
	return nil
}

// ensureRoleKeys generates the missing role keys. A role whose recorded
// public key no longer matches the stored key means the secret store lost
// material the genesis may already depend on, so the run stops.
func (r *Reconciler) ensureRoleKeys(ctx context.Context) error {
	refs, created, err := r.keyring.EnsureAll(ctx)
	if err != nil {
		return err
	}

	var mismatch []string
	r.view(func(rec *state.Record) {
		for role, prev := range rec.Keys {
			if cur, ok := refs[role]; ok && cur.PublicKey != prev.PublicKey {
				mismatch = append(mismatch, string(role))
			}
		}
	})
	if len(mismatch) > 0 {
		sort.Strings(mismatch)
		return fmt.Errorf("stored %s keys differ from the recorded public keys; refusing to continue with regenerated keys",
			strings.Join(mismatch, ", "))
	}

	if created > 0 {
		r.observer.Printf("[%s] Generated %d role keys", nodeRoleKeys, created)
	}
	r.update(func(rec *state.Record) {
		rec.Keys = make(map[keys.Role]keys.Ref, len(refs))
		for role, ref := range refs {
			rec.Keys[role] = ref
		}
	})
	return nil
}

// ensureVolumes creates every declared volume in parallel.
func (r *Reconciler) ensureVolumes(ctx context.Context) error {
	var (
		mu   sync.Mutex
		refs = make(map[string]provisioning.VolumeRef, len(r.cfg.Volumes))
	)

	tasks := make([]async.Task, 0, len(r.cfg.Volumes))
	for _, vc := range r.cfg.Volumes {
		spec := provisioning.VolumeSpec{
			Name:      naming.Volume(r.cfg.Deployment, vc.Role),
			Role:      vc.Role,
			SizeGiB:   vc.SizeGiB,
			IOPSClass: vc.IOPSClass,
			MountPath: vc.MountPath,
			Location:  r.cfg.Location,
			Labels:    r.volumeLabels(vc.Role, vc.IOPSClass),
		}
		tasks = append(tasks, async.Task{
			Name: spec.Name,
			Func: func(ctx context.Context) error {
				ref, err := r.provider.EnsureVolume(ctx, spec)
				if err != nil {
					return err
				}
				provisioning.LogResourceExists(r.observer, nodeVolumes, "volume", spec.Name, strconv.FormatInt(ref.ID, 10))
				mu.Lock()
				refs[spec.Role] = ref
				mu.Unlock()
				return nil
			},
		})
	}
	if err := async.RunParallel(ctx, tasks); err != nil {
		return err
	}

	r.update(func(rec *state.Record) {
		for role, ref := range refs {
			rec.Volumes[role] = ref
		}
	})
	return nil
}

// volumeRefs returns the recorded volumes ordered by role.
func volumeRefs(rec *state.Record) []provisioning.VolumeRef {
	out := make([]provisioning.VolumeRef, 0, len(rec.Volumes))
	for _, v := range rec.Volumes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
