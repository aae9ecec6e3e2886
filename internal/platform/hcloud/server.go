package hcloud

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/util/labels"
	"github.com/imamik/svmzner/internal/util/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

var errNoAddress = errors.New("server has no public address yet")

// EnsureComputeInstance creates the server described by spec with its
// volumes attached, or returns the existing one when it was created from an
// identical spec. A server carrying a different spec digest is drift.
func (c *RealClient) EnsureComputeInstance(ctx context.Context, spec provisioning.InstanceSpec) (*provisioning.ComputeInstance, error) {
	digest := InstanceDigest(spec)
	serverLabels := maps.Clone(spec.Labels)
	if serverLabels == nil {
		serverLabels = map[string]string{}
	}
	serverLabels[labels.KeySpecDigest] = digest

	server, created, err := (&EnsureOperation[*hcloud.Server, hcloud.ServerCreateOpts]{
		Name:         spec.Name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Create:       c.createServer,
		Validate: func(existing *hcloud.Server) error {
			got, ok := existing.Labels[labels.KeySpecDigest]
			switch {
			case !ok:
				return &provisioning.DriftError{ResourceType: "server", Name: spec.Name,
					Diffs: []string{"server exists but was not created by this deployment"}}
			case got != digest:
				return &provisioning.DriftError{ResourceType: "server", Name: spec.Name,
					Diffs: []string{fmt.Sprintf("spec digest %s, want %s", got, digest)}}
			}
			return nil
		},
		CreateOptsMapper: func() hcloud.ServerCreateOpts {
			return buildServerCreateOpts(spec, serverLabels)
		},
	}).Execute(ctx, c)
	if err != nil {
		return nil, err
	}

	if !created && server.Status == hcloud.ServerStatusOff {
		if err := c.powerOn(ctx, server); err != nil {
			return nil, err
		}
	}

	if serverPublicAddress(server) == "" {
		server = c.waitForAddress(ctx, server)
	}

	instance := toComputeInstance(server)
	instance.FirstBootScript = spec.FirstBootScript
	for _, v := range spec.Volumes {
		instance.Volumes = append(instance.Volumes, provisioning.AttachedVolume{
			ID:         v.ID,
			Role:       v.Role,
			DevicePath: v.DevicePath,
			SizeGiB:    v.SizeGiB,
			IOPSClass:  v.IOPSClass,
			MountPath:  v.MountPath,
		})
	}
	return instance, nil
}

func buildServerCreateOpts(spec provisioning.InstanceSpec, serverLabels map[string]string) hcloud.ServerCreateOpts {
	opts := hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: &hcloud.ServerType{Name: spec.ServerType},
		Image:      &hcloud.Image{ID: spec.Image.ID},
		SSHKeys:    []*hcloud.SSHKey{{ID: spec.SSHKey.ID}},
		Location:   &hcloud.Location{Name: spec.Location},
		UserData:   spec.FirstBootScript,
		Labels:     serverLabels,
		Automount:  hcloud.Ptr(false),
		PublicNet: &hcloud.ServerCreatePublicNet{
			EnableIPv4: true,
			EnableIPv6: true,
		},
	}
	if spec.Firewall.ID != 0 {
		opts.Firewalls = []*hcloud.ServerCreateFirewall{{Firewall: hcloud.Firewall{ID: spec.Firewall.ID}}}
	}
	for _, v := range spec.Volumes {
		opts.Volumes = append(opts.Volumes, &hcloud.Volume{ID: v.ID})
	}
	return opts
}

// createServer creates a server with exponential backoff retry logic.
func (c *RealClient) createServer(ctx context.Context, opts hcloud.ServerCreateOpts) (*CreateResult[*hcloud.Server], *hcloud.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerCreate)
	defer cancel()

	var (
		result hcloud.ServerCreateResult
		resp   *hcloud.Response
	)
	err := retry.WithExponentialBackoff(ctx, func() error {
		res, r, err := c.client.Server.Create(ctx, opts)
		resp = r
		if err != nil {
			if isInvalidParameter(err) || IsUniquenessError(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result = res
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	if err != nil {
		return nil, resp, err
	}

	actions := result.NextActions
	if result.Action != nil {
		actions = append([]*hcloud.Action{result.Action}, actions...)
	}
	return &CreateResult[*hcloud.Server]{Resource: result.Server, Actions: actions}, resp, nil
}

func (c *RealClient) powerOn(ctx context.Context, server *hcloud.Server) error {
	c.observer.Printf("Server %s is off, powering on", server.Name)
	action, _, err := c.client.Server.Poweron(ctx, server)
	if err != nil {
		return fmt.Errorf("failed to power on server: %w", err)
	}
	if err := waitForActions(ctx, c.client, action); err != nil {
		return fmt.Errorf("failed to wait for power on: %w", err)
	}
	return nil
}

// waitForAddress polls until the server reports a public address. On
// timeout the last seen server is returned unchanged; callers decide whether
// a missing address is fatal.
func (c *RealClient) waitForAddress(ctx context.Context, server *hcloud.Server) *hcloud.Server {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.ServerIP)
	defer cancel()

	latest := server
	_ = retry.WithExponentialBackoff(ctx, func() error {
		s, _, err := c.client.Server.GetByID(ctx, server.ID)
		if err != nil {
			return err
		}
		if s == nil {
			return retry.Fatal(fmt.Errorf("server %d disappeared", server.ID))
		}
		latest = s
		if serverPublicAddress(s) == "" {
			return errNoAddress
		}
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
	return latest
}

// GetComputeInstance returns the server named name with its attached
// volumes, or nil if it does not exist.
func (c *RealClient) GetComputeInstance(ctx context.Context, name string) (*provisioning.ComputeInstance, error) {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	if server == nil {
		return nil, nil
	}

	instance := toComputeInstance(server)
	for _, ref := range server.Volumes {
		vol, _, err := c.client.Volume.GetByID(ctx, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get volume %d: %w", ref.ID, err)
		}
		if vol == nil {
			continue
		}
		instance.Volumes = append(instance.Volumes, provisioning.AttachedVolume{
			ID:         vol.ID,
			Role:       vol.Labels[labels.KeyRole],
			DevicePath: devicePath(vol),
			SizeGiB:    vol.Size,
			IOPSClass:  vol.Labels[labels.KeyIOPSClass],
		})
	}
	return instance, nil
}

// DeleteComputeInstance deletes the server and waits until its volumes are
// released.
func (c *RealClient) DeleteComputeInstance(ctx context.Context, name string) error {
	return (&DeleteOperation[*hcloud.Server]{
		Name:         name,
		ResourceType: "server",
		Get:          c.client.Server.Get,
		Delete: func(ctx context.Context, server *hcloud.Server) (*hcloud.Response, error) {
			result, resp, err := c.client.Server.DeleteWithResult(ctx, server)
			if err != nil {
				return resp, err
			}
			if result != nil && result.Action != nil {
				if err := waitForActions(ctx, c.client, result.Action); err != nil {
					return resp, err
				}
			}
			return resp, nil
		},
	}).Execute(ctx, c)
}

func toComputeInstance(server *hcloud.Server) *provisioning.ComputeInstance {
	instance := &provisioning.ComputeInstance{
		ID:            server.ID,
		Name:          server.Name,
		Status:        string(server.Status),
		PublicAddress: serverPublicAddress(server),
	}
	if len(server.PrivateNet) > 0 && server.PrivateNet[0].IP != nil {
		instance.PrivateAddress = server.PrivateNet[0].IP.String()
	}
	return instance
}

// serverPublicAddress prefers IPv4 and falls back to the ::1 host of the
// IPv6 network.
func serverPublicAddress(s *hcloud.Server) string {
	if ip := s.PublicNet.IPv4.IP; ip != nil && !ip.IsUnspecified() {
		return ip.String()
	}
	base := s.PublicNet.IPv6.IP
	if n := s.PublicNet.IPv6.Network; n != nil {
		base = n.IP
	}
	if ip := base.To16(); ip != nil && !ip.IsUnspecified() {
		host := make(net.IP, net.IPv6len)
		copy(host, ip)
		host[net.IPv6len-1] |= 1
		return host.String()
	}
	return ""
}
