package hcloud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CleanupError represents accumulated errors from cleanup operations.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return errors.Join(e.Errors...)
}

// Add records err if it is non-nil.
func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was recorded.
func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}

// resource is a constraint for the Hetzner Cloud resources a deployment owns.
type resource interface {
	*hcloud.Server | *hcloud.Volume | *hcloud.Firewall | *hcloud.SSHKey
}

type resourceInfo struct {
	Name string
	ID   int64
}

func getResourceInfo[T resource](r T) resourceInfo {
	switch v := any(r).(type) {
	case *hcloud.Server:
		return resourceInfo{Name: v.Name, ID: v.ID}
	case *hcloud.Volume:
		return resourceInfo{Name: v.Name, ID: v.ID}
	case *hcloud.Firewall:
		return resourceInfo{Name: v.Name, ID: v.ID}
	case *hcloud.SSHKey:
		return resourceInfo{Name: v.Name, ID: v.ID}
	default:
		return resourceInfo{}
	}
}

// deleteByLabel lists resources and deletes each one by name, collecting
// every failure instead of stopping at the first.
func deleteByLabel[T resource](
	ctx context.Context,
	c *RealClient,
	resourceType string,
	listFn func(context.Context) ([]T, error),
	deleteFn func(context.Context, string) error,
) error {
	resources, err := listFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", resourceType, err)
	}

	var deleteErrs []error
	for _, r := range resources {
		info := getResourceInfo(r)
		c.observer.Printf("[Cleanup] Deleting %s: %s (ID: %d)", resourceType, info.Name, info.ID)
		if err := deleteFn(ctx, info.Name); err != nil {
			deleteErrs = append(deleteErrs, fmt.Errorf("%s %q: %w", resourceType, info.Name, err))
		}
	}
	return errors.Join(deleteErrs...)
}

// CleanupByLabel deletes every server, volume, firewall and SSH key matching
// the label selector. It keeps going after failures and reports them all.
func (c *RealClient) CleanupByLabel(ctx context.Context, labelSelector map[string]string) error {
	selector := buildLabelSelector(labelSelector)
	listOpts := hcloud.ListOpts{LabelSelector: selector}
	cleanupErrs := &CleanupError{}

	// Servers go first so their volumes and firewalls are released.
	cleanupErrs.Add(deleteByLabel(ctx, c, "servers",
		func(ctx context.Context) ([]*hcloud.Server, error) {
			return c.client.Server.AllWithOpts(ctx, hcloud.ServerListOpts{ListOpts: listOpts})
		}, c.DeleteComputeInstance))
	cleanupErrs.Add(deleteByLabel(ctx, c, "volumes",
		func(ctx context.Context) ([]*hcloud.Volume, error) {
			return c.client.Volume.AllWithOpts(ctx, hcloud.VolumeListOpts{ListOpts: listOpts})
		}, c.DeleteVolume))
	cleanupErrs.Add(deleteByLabel(ctx, c, "firewalls",
		func(ctx context.Context) ([]*hcloud.Firewall, error) {
			return c.client.Firewall.AllWithOpts(ctx, hcloud.FirewallListOpts{ListOpts: listOpts})
		}, c.DeleteNetworkRules))
	cleanupErrs.Add(deleteByLabel(ctx, c, "ssh keys",
		func(ctx context.Context) ([]*hcloud.SSHKey, error) {
			return c.client.SSHKey.AllWithOpts(ctx, hcloud.SSHKeyListOpts{ListOpts: listOpts})
		}, c.DeleteSSHKey))

	if cleanupErrs.HasErrors() {
		return cleanupErrs
	}
	return nil
}

// buildLabelSelector converts a map of labels to a Hetzner Cloud label selector string.
func buildLabelSelector(labels map[string]string) string {
	parts := make([]string, 0, len(labels))
	for k, v := range labels {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
