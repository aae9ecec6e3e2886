package hcloud

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/svmzner/internal/util/retry"
)

// SetReverseDNS points the PTR record of one of the server's addresses at
// ptr. Locked servers are retried.
func (c *RealClient) SetReverseDNS(ctx context.Context, instanceID int64, address, ptr string) error {
	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("invalid IP address: %s", address)
	}
	server := &hcloud.Server{ID: instanceID}

	return retry.WithExponentialBackoff(ctx, func() error {
		action, _, err := c.client.RDNS.ChangeDNSPtr(ctx, server, ip, hcloud.Ptr(ptr))
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return retry.Fatal(fmt.Errorf("failed to set rDNS of server %d (%s -> %s): %w", instanceID, address, ptr, err))
		}
		if action != nil {
			if err := waitForActions(ctx, c.client, action); err != nil {
				return retry.Fatal(fmt.Errorf("failed waiting for rDNS action on server %d: %w", instanceID, err))
			}
		}
		return nil
	}, retry.WithMaxRetries(c.timeouts.RetryMaxAttempts), retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}
