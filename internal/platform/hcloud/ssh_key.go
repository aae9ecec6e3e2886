package hcloud

import (
	"context"
	"strings"

	"github.com/imamik/svmzner/internal/provisioning"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureSSHKey registers publicKey under name, or returns the key already
// registered under that name if it carries the same public key.
func (c *RealClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (provisioning.SSHKeyRef, error) {
	key, _, err := (&EnsureOperation[*hcloud.SSHKey, hcloud.SSHKeyCreateOpts]{
		Name:         name,
		ResourceType: "ssh key",
		Get:          c.client.SSHKey.Get,
		Create:       simpleCreate(c.client.SSHKey.Create),
		Validate: func(existing *hcloud.SSHKey) error {
			if sameAuthorizedKey(existing.PublicKey, publicKey) {
				return nil
			}
			return &provisioning.DriftError{
				ResourceType: "ssh key",
				Name:         name,
				Diffs:        []string{"public key differs from the deployment key"},
			}
		},
		CreateOptsMapper: func() hcloud.SSHKeyCreateOpts {
			return hcloud.SSHKeyCreateOpts{
				Name:      name,
				PublicKey: publicKey,
				Labels:    labels,
			}
		},
	}).Execute(ctx, c)
	if err != nil {
		return provisioning.SSHKeyRef{}, err
	}
	return provisioning.SSHKeyRef{ID: key.ID, Name: key.Name, Fingerprint: key.Fingerprint}, nil
}

// DeleteSSHKey deletes the SSH key with the given name.
func (c *RealClient) DeleteSSHKey(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.SSHKey]{
		Name:         name,
		ResourceType: "ssh key",
		Get:          c.client.SSHKey.Get,
		Delete:       c.client.SSHKey.Delete,
	}).Execute(ctx, c)
}

// sameAuthorizedKey compares the key type and blob, ignoring comments.
func sameAuthorizedKey(a, b string) bool {
	fa, fb := strings.Fields(a), strings.Fields(b)
	if len(fa) < 2 || len(fb) < 2 {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return fa[0] == fb[0] && fa[1] == fb[1]
}
