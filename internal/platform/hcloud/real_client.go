package hcloud

import (
	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/provisioning"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// RealClient implements provisioning.ResourceProvider using the Hetzner Cloud API.
type RealClient struct {
	client   *hcloud.Client
	timeouts *config.Timeouts
	observer provisioning.Observer
}

var _ provisioning.ResourceProvider = (*RealClient)(nil)

// ClientOption configures a RealClient.
type ClientOption func(*RealClient)

// WithTimeouts sets custom timeouts for the client.
func WithTimeouts(t *config.Timeouts) ClientOption {
	return func(c *RealClient) {
		c.timeouts = t
	}
}

// WithHCloudClient sets a custom hcloud client (useful for testing).
func WithHCloudClient(hc *hcloud.Client) ClientOption {
	return func(c *RealClient) {
		c.client = hc
	}
}

// WithObserver routes cleanup and wait messages to o.
func WithObserver(o provisioning.Observer) ClientOption {
	return func(c *RealClient) {
		c.observer = o
	}
}

// NewRealClient creates a new RealClient with optional configuration.
func NewRealClient(token string, opts ...ClientOption) *RealClient {
	c := &RealClient{
		client: hcloud.NewClient(
			hcloud.WithToken(token),
			hcloud.WithApplication("svmzner", "dev"),
		),
		timeouts: config.LoadTimeouts(),
		observer: provisioning.NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HCloudClient returns the underlying hcloud.Client for advanced operations.
func (c *RealClient) HCloudClient() *hcloud.Client {
	return c.client
}
