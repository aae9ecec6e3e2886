package hcloud

import (
	"context"
	"fmt"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/util/labels"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureVolume ensures a volume named spec.Name exists with the requested
// size and IOPS class. Volumes are left unformatted; the first-boot script
// owns the filesystem.
func (c *RealClient) EnsureVolume(ctx context.Context, spec provisioning.VolumeSpec) (provisioning.VolumeRef, error) {
	vol, _, err := (&EnsureOperation[*hcloud.Volume, hcloud.VolumeCreateOpts]{
		Name:         spec.Name,
		ResourceType: "volume",
		Get:          c.client.Volume.Get,
		Create:       c.createVolume,
		Validate: func(existing *hcloud.Volume) error {
			if diffs := diffVolume(existing, spec); len(diffs) > 0 {
				return &provisioning.DriftError{ResourceType: "volume", Name: spec.Name, Diffs: diffs}
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.VolumeCreateOpts {
			return hcloud.VolumeCreateOpts{
				Name:      spec.Name,
				Size:      spec.SizeGiB,
				Location:  &hcloud.Location{Name: spec.Location},
				Labels:    spec.Labels,
			}
		},
	}).Execute(ctx, c)
	if err != nil {
		return provisioning.VolumeRef{}, err
	}
	return provisioning.VolumeRef{
		ID:         vol.ID,
		Name:       vol.Name,
		Role:       spec.Role,
		SizeGiB:    vol.Size,
		IOPSClass:  spec.IOPSClass,
		MountPath:  spec.MountPath,
		DevicePath: devicePath(vol),
	}, nil
}

func (c *RealClient) createVolume(ctx context.Context, opts hcloud.VolumeCreateOpts) (*CreateResult[*hcloud.Volume], *hcloud.Response, error) {
	res, resp, err := c.client.Volume.Create(ctx, opts)
	if err != nil {
		return nil, resp, err
	}
	actions := res.NextActions
	if res.Action != nil {
		actions = append([]*hcloud.Action{res.Action}, actions...)
	}
	return &CreateResult[*hcloud.Volume]{Resource: res.Volume, Actions: actions}, resp, nil
}

// DeleteVolume detaches the volume if needed and deletes it.
func (c *RealClient) DeleteVolume(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Volume]{
		Name:         name,
		ResourceType: "volume",
		Get:          c.client.Volume.Get,
		Delete: func(ctx context.Context, vol *hcloud.Volume) (*hcloud.Response, error) {
			if vol.Server != nil {
				action, resp, err := c.client.Volume.Detach(ctx, vol)
				if err != nil {
					return resp, err
				}
				if err := waitForActions(ctx, c.client, action); err != nil {
					return resp, err
				}
			}
			return c.client.Volume.Delete(ctx, vol)
		},
	}).Execute(ctx, c)
}

func diffVolume(existing *hcloud.Volume, spec provisioning.VolumeSpec) []string {
	var diffs []string
	if existing.Size != spec.SizeGiB {
		diffs = append(diffs, fmt.Sprintf("size %dGiB, want %dGiB", existing.Size, spec.SizeGiB))
	}
	if got := existing.Labels[labels.KeyIOPSClass]; got != spec.IOPSClass {
		diffs = append(diffs, fmt.Sprintf("iops class %q, want %q", got, spec.IOPSClass))
	}
	if got := existing.Labels[labels.KeyRole]; got != spec.Role {
		diffs = append(diffs, fmt.Sprintf("role %q, want %q", got, spec.Role))
	}
	if spec.Location != "" && existing.Location != nil && existing.Location.Name != spec.Location {
		diffs = append(diffs, fmt.Sprintf("location %s, want %s", existing.Location.Name, spec.Location))
	}
	return diffs
}

// devicePath is the stable by-id path the volume appears under on the host.
func devicePath(vol *hcloud.Volume) string {
	if vol.LinuxDevice != "" {
		return vol.LinuxDevice
	}
	return fmt.Sprintf("/dev/disk/by-id/scsi-0HC_Volume_%d", vol.ID)
}
